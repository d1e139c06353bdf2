package validation

import (
	"bytes"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	cramMagic = []byte("CRAM")
	vcfMagic  = []byte("##fileformat=VCF")
)

type signature func(head []byte) bool

func prefix(magic []byte) signature {
	return func(head []byte) bool {
		return bytes.HasPrefix(head, magic)
	}
}

func jsonDocument(head []byte) bool {
	head = bytes.TrimLeft(head, " \t\r\n")
	return bytes.HasPrefix(head, []byte("{")) || bytes.HasPrefix(head, []byte("["))
}

// signatures maps a file format to the check of its leading bytes. bam, and every
// bgzip compressed format, start with the gzip magic.
var signatures = map[string]signature{
	"fastq":    prefix([]byte("@")),
	"fq":       prefix([]byte("@")),
	"vcf":      prefix(vcfMagic),
	"bam":      prefix(gzipMagic),
	"bgzip":    prefix(gzipMagic),
	"gz":       prefix(gzipMagic),
	"fastq.gz": prefix(gzipMagic),
	"fq.gz":    prefix(gzipMagic),
	"vcf.gz":   prefix(gzipMagic),
	"cram":     prefix(cramMagic),
	"json":     jsonDocument,
}

// matchesFormat reports whether head looks like format. Unknown formats only need content.
func matchesFormat(format string, head []byte) (known bool, ok bool) {
	sig, found := signatures[format]
	if !found {
		return false, len(head) > 0
	}
	return true, sig(head)
}
