package transform

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var shortDate = regexp.MustCompile(`(\d{2})-([A-Za-z]{3})-(\d{2})`)

// ConvertFilenameDate rewrites dd-Mon-yy dates in name as dd-mm-yy.
// Unknown month abbreviations are left untouched.
func ConvertFilenameDate(name string) string {
	return shortDate.ReplaceAllStringFunc(name, func(m string) string {
		parts := shortDate.FindStringSubmatch(m)
		month, err := time.Parse("Jan", strings.ToUpper(parts[2][:1])+strings.ToLower(parts[2][1:]))
		if err != nil {
			return m
		}
		return fmt.Sprintf("%s-%02d-%s", parts[1], int(month.Month()), parts[3])
	})
}

// OutputName is the Parquet object name for a payload:
// <stem>_<timestamp>.parquet. Archive members also get their dates
// rewritten.
func OutputName(payloadName, timestamp string, member bool) string {
	base := path.Base(payloadName)
	stem := strings.TrimSuffix(base, path.Ext(base))
	name := stem + "_" + timestamp + ".parquet"
	if member {
		name = ConvertFilenameDate(name)
	}
	return name
}
