package props

import (
	"strings"

	"github.com/piex/transcode"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/zhukovaskychina/xpst/logger"
)

const (
	codepageGBK   = 936
	codepageUTF8  = 65001
	codepageASCII = 20127
)

// Windows code page number -> decoder
var codepages = map[int]encoding.Encoding{
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	852:   charmap.CodePage852,
	855:   charmap.CodePage855,
	858:   charmap.CodePage858,
	860:   charmap.CodePage860,
	862:   charmap.CodePage862,
	863:   charmap.CodePage863,
	865:   charmap.CodePage865,
	866:   charmap.CodePage866,
	874:   charmap.Windows874,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	10000: charmap.Macintosh,
	20866: charmap.KOI8R,
	21866: charmap.KOI8U,
	28591: charmap.ISO8859_1,
	28592: charmap.ISO8859_2,
	28593: charmap.ISO8859_3,
	28594: charmap.ISO8859_4,
	28595: charmap.ISO8859_5,
	28596: charmap.ISO8859_6,
	28597: charmap.ISO8859_7,
	28598: charmap.ISO8859_8,
	28599: charmap.ISO8859_9,
	28603: charmap.ISO8859_13,
	28605: charmap.ISO8859_15,
	932:   japanese.ShiftJIS,
	20932: japanese.EUCJP,
	51932: japanese.EUCJP,
	50220: japanese.ISO2022JP,
	949:   korean.EUCKR,
	51949: korean.EUCKR,
	950:   traditionalchinese.Big5,
	54936: simplifiedchinese.GB18030,
	52936: simplifiedchinese.HZGB2312,
	1200:  unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	1201:  unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
}

// DecodeUnicode decodes UTF-16LE and removes every NUL.
func DecodeUnicode(b []byte) string {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(string(out), "\x00", "")
}

// DecodeCodepage decodes an 8-bit string in the given Windows code page.
// Trailing NULs are dropped. Unknown code pages fall back to Windows-1252.
func DecodeCodepage(b []byte, codepage int) string {
	b = trimNUL(b)
	switch codepage {
	case codepageUTF8, codepageASCII:
		return string(b)
	case codepageGBK:
		return transcode.FromByteArray(b).Decode("GBK").ToString()
	}
	enc, ok := codepages[codepage]
	if !ok {
		logger.Debugf("unknown code page %d, decoding as windows-1252", codepage)
		enc = charmap.Windows1252
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// SupportedCodepage reports whether DecodeCodepage knows codepage.
func SupportedCodepage(codepage int) bool {
	switch codepage {
	case codepageUTF8, codepageASCII, codepageGBK:
		return true
	}
	_, ok := codepages[codepage]
	return ok
}

func trimNUL(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}
