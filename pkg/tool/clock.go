package tool

import (
	"context"
	"fmt"
	"time"
)

// NewClock returns a tool reporting the current time, optionally in a named
// IANA timezone.
func NewClock() Definition {
	return Definition{
		Name:        "clock",
		Description: "Returns the current date and time",
		Parameters: []Parameter{
			{
				Name:        "timezone",
				Type:        "string",
				Description: "IANA timezone name, e.g. 'UTC' or 'Asia/Jakarta'",
				Default:     "UTC",
			},
		},
		Handler: currentTime,
	}
}

func currentTime(_ context.Context, args map[string]interface{}) (string, error) {
	tz, _ := args["timezone"].(string)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("unknown timezone %q", tz)
	}
	return time.Now().In(loc).Format("2006-01-02 15:04:05 MST"), nil
}
