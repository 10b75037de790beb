package export

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	EncodingUTF8BOM = "utf-8-sig"
	EncodingUTF8    = "utf-8"
	EncodingGB18030 = "gb18030"
	EncodingGBK     = "gbk"
	EncodingGB2312  = "gb2312"

	DefaultEncoding = EncodingUTF8BOM
)

// Encodings lists the accepted names in the order they are offered.
var Encodings = []string{EncodingUTF8BOM, EncodingUTF8, EncodingGB18030, EncodingGBK, EncodingGB2312}

// NormalizeEncoding maps aliases onto one of Encodings.
func NormalizeEncoding(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8-sig", "utf8-sig", "utf-8-bom":
		return EncodingUTF8BOM, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	case "gb18030":
		return EncodingGB18030, nil
	case "gbk", "cp936":
		return EncodingGBK, nil
	case "gb2312":
		return EncodingGB2312, nil
	}
	return "", fmt.Errorf("export: unsupported encoding %q", name)
}

// newEncodedWriter wraps w so text written to it is transcoded. Runes the
// target charset cannot represent are replaced instead of failing the export.
// Close flushes the encoder; it never closes w.
func newEncodedWriter(w io.Writer, name string) (io.WriteCloser, error) {
	name, err := NormalizeEncoding(name)
	if err != nil {
		return nil, err
	}

	var enc encoding.Encoding
	switch name {
	case EncodingUTF8BOM:
		enc = unicode.UTF8BOM
	case EncodingUTF8:
		return nopWriteCloser{w}, nil
	case EncodingGB18030:
		enc = simplifiedchinese.GB18030
	case EncodingGBK, EncodingGB2312:
		// x/text has no plain EUC-CN encoder; GBK is its superset.
		enc = simplifiedchinese.GBK
	}

	return transform.NewWriter(w, encoding.ReplaceUnsupported(enc.NewEncoder())), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
