package migrations_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bd2kgenomics/spinnaker/internal/config"
	"github.com/bd2kgenomics/spinnaker/internal/store"
	"github.com/bd2kgenomics/spinnaker/internal/store/model"
	"github.com/bd2kgenomics/spinnaker/pkg/migrations"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("migrations", func() {
	var (
		cfg    *config.Config
		s      store.Store
		gormdb *gorm.DB
	)

	BeforeEach(func() {
		cfg = config.NewDefault()
		cfg.Database.Name = filepath.Join(GinkgoT().TempDir(), "spinnaker.db")

		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
	})

	AfterEach(func() {
		_ = s.Close()
	})

	tableExists := func(name string) bool {
		var count int64
		tx := gormdb.Raw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
		Expect(tx.Error).To(BeNil())
		return count == 1
	}

	Context("store migrations", func() {
		It("fails to migrate the db -- migration folder does not exist", func() {
			cfg.Service.MigrationFolder = "some folder"
			Expect(migrations.MigrateStore(gormdb, cfg)).NotTo(BeNil())
			Expect(tableExists("submissions")).To(BeFalse())
		})

		It("fails to migrate the db -- migration folder is a file", func() {
			file := filepath.Join(GinkgoT().TempDir(), "migration.sql")
			Expect(os.WriteFile(file, []byte("-- +goose Up\n"), 0o600)).To(Succeed())

			cfg.Service.MigrationFolder = file
			err := migrations.MigrateStore(gormdb, cfg)
			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("is not a folder"))
		})

		It("successfully migrates the db with the shipped migrations", func() {
			Expect(migrations.MigrateStore(gormdb, cfg)).To(Succeed())
			Expect(tableExists("submissions")).To(BeTrue())
			Expect(tableExists("goose_db_version")).To(BeTrue())

			// the store works on top of the migrated schema
			now := time.Now().UTC()
			created, err := s.Submission().Create(context.Background(), model.Submission{Status: model.SubmissionStatusNew, Created: now, Modified: now})
			Expect(err).To(BeNil())
			Expect(created.ID).NotTo(BeZero())

			// and the status constraint holds
			_, err = s.Submission().Create(context.Background(), model.Submission{Status: "lost", Created: now, Modified: now})
			Expect(err).NotTo(BeNil())
		})

		It("is idempotent", func() {
			Expect(migrations.MigrateStore(gormdb, cfg)).To(Succeed())
			Expect(migrations.MigrateStore(gormdb, cfg)).To(Succeed())
		})

		It("reads migrations from a folder", func() {
			folder := GinkgoT().TempDir()
			migration := "-- +goose Up\nCREATE TABLE widgets (id INTEGER PRIMARY KEY);\n\n-- +goose Down\nDROP TABLE widgets;\n"
			Expect(os.WriteFile(filepath.Join(folder, "00001_widgets.sql"), []byte(migration), 0o600)).To(Succeed())

			cfg.Service.MigrationFolder = folder
			Expect(migrations.MigrateStore(gormdb, cfg)).To(Succeed())
			Expect(tableExists("widgets")).To(BeTrue())
			Expect(tableExists("submissions")).To(BeFalse())
		})
	})
})
