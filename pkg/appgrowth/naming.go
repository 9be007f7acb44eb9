package appgrowth

import (
	"fmt"
	"strconv"
	"strings"
)

const segmentNamePrefix = "bloom"

// SegmentName builds the bloom_{app}_{COUNTRY}_{code} name. The code is
// "<days>d" for RetainedAtLeast and the truncated percentage for ActiveUsers.
// The app id keeps its case.
func SegmentName(appID, country string, t SegmentType, value float64) string {
	var code string
	if t == RetainedAtLeast {
		code = strconv.Itoa(int(value)) + "d"
	} else {
		code = strconv.Itoa(int(value * 100))
	}

	return fmt.Sprintf("%s_%s_%s_%s", segmentNamePrefix, appID, strings.ToUpper(country), strings.ToLower(code))
}
