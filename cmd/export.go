package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eventcal/internal/ics"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export occurrences in a date range as iCalendar",
	Long: `Export expands every event inside the given range and writes the
occurrences as an iCalendar (.ics) file, suitable for importing into
other calendar applications.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&listFrom, "from", "", "Range start (2006-01-02, default today)")
	exportCmd.Flags().StringVar(&listTo, "to", "", "Range end (2006-01-02, default same as --from)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "Output file (- for stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	from, to, err := rangeFlags()
	if err != nil {
		return err
	}

	occs, err := fetchOccurrences(a, from, to)
	if err != nil {
		return fmt.Errorf("error getting events: %w", err)
	}

	out := os.Stdout
	if exportOutput != "-" {
		out, err = os.Create(exportOutput)
		if err != nil {
			return err
		}
		defer out.Close()
	}

	if err := ics.Write(out, occs); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	if exportOutput != "-" {
		fmt.Printf("Wrote %d occurrence(s) to %s\n", len(occs), exportOutput)
	}
	return nil
}
