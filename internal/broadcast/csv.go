package broadcast

import (
	"encoding/csv"
	"io"
	"strconv"
)

// LogFilename is the suggested name for a downloaded send log.
const LogFilename = "ncsf_log.csv"

var logHeader = []string{"Phone Number", "Status Code", "Error Message"}

// WriteCSV writes one row per attempt, in send order, after a header row.
func WriteCSV(w io.Writer, results []SendResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(logHeader); err != nil {
		return err
	}
	for _, r := range results {
		if err := writer.Write([]string{r.Number, strconv.Itoa(r.StatusCode), r.ErrorMessage}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
