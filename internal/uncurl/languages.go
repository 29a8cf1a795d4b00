package uncurl

import (
	"encoding/json"
	"fmt"

	"go.followtheprocess.codes/hue"
	"go.followtheprocess.codes/uncurl/convert"
)

// Styles.
const (
	// headerKeyStyle is the style used for printing header keys
	// like Content-Type when we show a request on the command line.
	headerKeyStyle = hue.Cyan

	// dimmed is the style used for printing informational content like
	// labels and file names.
	dimmed = hue.BrightBlack | hue.Italic

	// languageStyle is the style used for language names in the languages table.
	languageStyle = hue.Green | hue.Bold
)

// LanguagesOptions are the flags passed to the languages subcommand.
type LanguagesOptions struct {
	// JSON prints the table as JSON.
	JSON bool

	// Debug controls debug logging.
	Debug bool
}

// Languages implements the languages subcommand, printing every supported target.
func (u Uncurl) Languages(options LanguagesOptions) error {
	supported := convert.Supported()

	u.logger.Prefixed("languages").Debug("Listing supported targets")

	if options.JSON {
		encoder := json.NewEncoder(u.stdout)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(supported); err != nil {
			return fmt.Errorf("could not encode languages: %w", err)
		}

		return nil
	}

	languageWidth, frameworkWidth := len("LANGUAGE"), len("FRAMEWORK")
	for _, target := range supported {
		languageWidth = max(languageWidth, len(target.Language))
		frameworkWidth = max(frameworkWidth, len(target.Framework))
	}

	// Pad before styling so the escape codes don't throw out the alignment
	header := fmt.Sprintf("%-*s  %-*s  %-9s  %s", languageWidth, "LANGUAGE", frameworkWidth, "FRAMEWORK", "EXTENSION", "SUPPORTS")
	fmt.Fprintln(u.stdout, hue.Bold.Text(header))

	previous := ""

	for _, target := range supported {
		language := ""
		if target.Language != previous {
			language = target.Language
			previous = target.Language
		}

		fmt.Fprintf(
			u.stdout,
			"%s  %-*s  %s  %s\n",
			languageStyle.Text(fmt.Sprintf("%-*s", languageWidth, language)),
			frameworkWidth,
			target.Framework,
			dimmed.Text(fmt.Sprintf("%-9s", target.Extension)),
			target.Capabilities,
		)
	}

	return nil
}
