package minidump

import (
	piiconfig "github.com/supergoodsystems/pii-scrub/pkg/pii-config"
)

// minUTF16Run is the shortest run of wide characters worth scanning.
const minUTF16Run = 4

// scrubUTF16 finds runs of printable ASCII stored as UTF-16LE, which is how
// Windows minidumps keep most strings, scans their narrow form and
// overwrites matches in the wide bytes.
func scrubUTF16(buf []byte, rules []*piiconfig.Rule, filler byte) (int, []Region) {
	var (
		count   int
		regions []Region
	)
	for i := 0; i+1 < len(buf); {
		j := i
		for j+1 < len(buf) && isPrintable(buf[j]) && buf[j+1] == 0 {
			j += 2
		}
		n := (j - i) / 2
		if n < minUTF16Run {
			if j > i {
				i = j
			} else {
				i++
			}
			continue
		}

		narrow := make([]byte, n)
		for k := range narrow {
			narrow[k] = buf[i+2*k]
		}
		for _, m := range scan(narrow, rules) {
			wide := make([][2]int, len(m.spans))
			for k, sp := range m.spans {
				wide[k] = [2]int{i + 2*sp[0], i + 2*sp[1]}
				regions = append(regions, Region{Offset: wide[k][0], Length: wide[k][1] - wide[k][0], RuleID: m.rule.ID, Encoding: EncodingUTF16LE})
			}
			overwrite(buf, wide, filler, 2)
			count++
		}
		i = j
	}
	return count, regions
}

func isPrintable(c byte) bool {
	return c >= 0x20 && c < 0x7f || c == '\t' || c == '\n' || c == '\r'
}
