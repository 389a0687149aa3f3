package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/lumen/internal/contrast"
)

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <foreground> <background>",
		Short: "Compute the contrast ratio of one color pair",
		Long: `Compute the WCAG 2.x contrast ratio between a text color and its
background, and report whether it meets level AA for the given font.

Colors may be hex (#rgb, #rrggbb) or rgb()/rgba() notation.

Examples:
  lumen check "#959595" "#ffffff"
  lumen check "rgb(6, 37, 28)" "rgb(13, 69, 56)" --size 24
  lumen check "#767676" white --strict`,
		Args: cobra.ExactArgs(2),
		RunE: runCheck,
	}
	cmd.Flags().String("size", "16px", "Computed font size")
	cmd.Flags().String("weight", "400", "Computed font weight")
	cmd.Flags().Bool("json", false, "Print the check as JSON")
	cmd.Flags().Bool("strict", false, "Exit 2 when the pair fails AA")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	size, _ := cmd.Flags().GetString("size")
	weight, _ := cmd.Flags().GetString("weight")

	fg, bg := parseArgColor(args[0]), parseArgColor(args[1])
	check, err := contrast.Evaluate(contrast.Sample{
		Foreground: fg,
		Background: bg,
		FontSizePx: contrast.ParseFontSize(size),
		FontWeight: contrast.ParseFontWeight(weight),
	})
	if err != nil {
		return &ExitError{Code: exitError, Message: fmt.Sprintf("cannot read colors %q and %q: %v", args[0], args[1], err)}
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(check); err != nil {
			return err
		}
	} else {
		verdict := "PASS"
		if !check.Passes {
			verdict = "FAIL"
		}
		category := "normal text"
		if check.LargeText {
			category = "large text"
		}
		fmt.Fprintf(out, "Color: %s on %s\n", check.Foreground.Hex(), check.Background.Hex())
		fmt.Fprintf(out, "Contrast: %.2f:1 (needs %.1f:1 for %s)\n", check.Ratio, check.Required, category)
		fmt.Fprintf(out, "WCAG AA: %s\n", verdict)
	}

	if strict, _ := cmd.Flags().GetBool("strict"); strict && !check.Passes {
		return &ExitError{Code: exitIssues}
	}
	return nil
}

// parseArgColor accepts the two named colors people type most.
func parseArgColor(s string) contrast.Color {
	switch s {
	case "white":
		return contrast.White
	case "black":
		return contrast.Black
	}
	return contrast.ParseColor(s)
}
