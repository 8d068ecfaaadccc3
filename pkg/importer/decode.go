package importer

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Encoding names understood by Decode.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-sig"
	EncodingGBK     = "gbk"
	EncodingGB18030 = "gb18030"
)

// DefaultEncodings is the candidate order for text bills.
var DefaultEncodings = []string{EncodingUTF8, EncodingUTF8BOM, EncodingGBK, EncodingGB18030}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var errUndecodable = errors.New("invalid byte sequence")

// Decode converts data to a string using the first candidate encoding that
// decodes it cleanly. It returns the decoded text and the encoding used.
func Decode(data []byte, encodings []string) (string, string, error) {
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}

	var errs []error
	for _, name := range encodings {
		text, err := decodeAs(data, name)
		if err == nil {
			return text, name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return "", "", fmt.Errorf("no candidate encoding fits: %w", errors.Join(errs...))
}

func decodeAs(data []byte, name string) (string, error) {
	switch strings.ToLower(name) {
	case EncodingUTF8, "utf8":
		if !utf8.Valid(data) {
			return "", errUndecodable
		}
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	case EncodingUTF8BOM:
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", errUndecodable
		}
		return string(data), nil
	case EncodingGBK:
		return decodeStrict(simplifiedchinese.GBK, data)
	case EncodingGB18030:
		return decodeStrict(simplifiedchinese.GB18030, data)
	default:
		return "", fmt.Errorf("unknown encoding %q", name)
	}
}

// decodeStrict rejects input the decoder had to patch with U+FFFD, which
// the legacy Chinese encodings cannot represent themselves.
func decodeStrict(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", errUndecodable
	}
	return string(out), nil
}
