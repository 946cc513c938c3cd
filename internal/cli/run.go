package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ScriptWriter/internal/app"
	"ScriptWriter/internal/domain"
	"ScriptWriter/internal/infrastructure/scriptapi"
	"ScriptWriter/internal/pipeline"
	"ScriptWriter/internal/ports"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type runOptions struct {
	server      string
	interactive bool
	picks       map[domain.Category]*int
	pickSpec    map[string]int
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	ropts := &runOptions{picks: map[domain.Category]*int{}}
	for _, cat := range domain.Categories {
		ropts.picks[cat] = new(int)
	}

	cmd := &cobra.Command{
		Use:   "run [video idea]",
		Short: "Run the whole pipeline for one idea",
		Long: `Runs source gathering, content extraction and component generation,
then asks for one hook, bridge, golden nugget and call to action before
assembling the final script. Selections come from flags, or from stdin
with --interactive. Unset selections default to the first option.`,
		Example: `  scriptwriter run "morning routine tips" --hook 1 --wta 0
  scriptwriter run "morning routine tips" --pick hook=1,nugget=2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ropts.applyPickSpec(cmd); err != nil {
				return err
			}
			if !cmd.Flags().Changed("interactive") {
				ropts.interactive = term.IsTerminal(int(os.Stdin.Fd()))
			}
			return runPipeline(cmd, opts, ropts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&ropts.server, "server", "", "run stages against a scriptwriter server instead of in-process")
	cmd.Flags().BoolVarP(&ropts.interactive, "interactive", "i", false, "prompt for each selection (default when stdin is a terminal)")
	cmd.Flags().IntVar(ropts.picks[domain.CategoryHook], "hook", -1, "hook option index")
	cmd.Flags().IntVar(ropts.picks[domain.CategoryBridge], "bridge", -1, "bridge option index")
	cmd.Flags().IntVar(ropts.picks[domain.CategoryGoldenNugget], "nugget", -1, "golden nugget option index")
	cmd.Flags().IntVar(ropts.picks[domain.CategoryWTA], "wta", -1, "call-to-action option index")
	cmd.Flags().StringToIntVar(&ropts.pickSpec, "pick", nil, "selections as category=index pairs")
	return cmd
}

func runPipeline(cmd *cobra.Command, opts *rootOptions, ropts *runOptions, idea string) error {
	a, err := opts.bootstrap(cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	var stages ports.Stages
	if ropts.server != "" {
		stages = scriptapi.NewClient(ropts.server)
	} else {
		if !a.Credentialed() {
			return errors.New("no generation provider is configured: set GEMINI_API_KEY or CHATGPT_API_KEY, or pass --server")
		}
		stages = a.Stages()
	}

	ctrl := a.NewController(stages)
	defer ctrl.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	seq := ctrl.Events().LastSeq()
	if err := ctrl.Submit(idea); err != nil {
		return err
	}
	fmt.Fprintln(out, mutedStyle.Render("Researching "+strconv.Quote(strings.TrimSpace(idea))+"..."))

	state, err := followRun(ctx, out, ctrl, &seq)
	if err != nil {
		return err
	}
	if state.Stage == domain.StageError {
		return fmt.Errorf("%s failed: %s", state.FailedStage, state.ErrorMessage)
	}

	printSources(out, state.Sources)
	printComponents(out, state.Components)

	in := bufio.NewReader(cmd.InOrStdin())
	for _, cat := range domain.Categories {
		idx, err := ropts.pick(out, in, cat, state.Components.Len(cat))
		if err != nil {
			return err
		}
		if err := ctrl.Select(cat, idx); err != nil {
			return fmt.Errorf("select %s: %w", cat, err)
		}
	}

	state, err = followRun(ctx, out, ctrl, &seq)
	if err != nil {
		return err
	}
	if state.Stage == domain.StageError {
		return fmt.Errorf("%s failed: %s", state.FailedStage, state.ErrorMessage)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, headingStyle.Render("Final script"))
	fmt.Fprintln(out, state.FinalScript)
	return nil
}

// applyPickSpec folds --pick pairs into the per-category selections. A
// dedicated flag such as --hook wins over a --pick entry for the same slot.
func (r *runOptions) applyPickSpec(cmd *cobra.Command) error {
	for name, idx := range r.pickSpec {
		cat, err := domain.ParseCategory(name)
		if err != nil {
			return fmt.Errorf("--pick %s: %w", name, err)
		}
		if idx < 0 {
			return fmt.Errorf("--pick %s=%d: index must not be negative", name, idx)
		}
		if cmd.Flags().Changed(flagName(cat)) {
			continue
		}
		*r.picks[cat] = idx
	}
	return nil
}

// followRun prints stage progress from the event feed until the controller
// stops running. seq tracks the last event already printed.
func followRun(ctx context.Context, out io.Writer, ctrl *pipeline.Controller, seq *int64) (domain.PipelineState, error) {
	for {
		changed := ctrl.Changed()
		state := ctrl.State()
		for _, ev := range ctrl.Events().Since(*seq) {
			*seq = ev.Seq
			printEvent(out, ev)
		}
		if !state.Stage.Running() {
			return state, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctrl.State(), ctx.Err()
		}
	}
}

func printEvent(w io.Writer, ev pipeline.Event) {
	switch ev.Type {
	case pipeline.EventTypeStage:
		if label := stageLabel(ev.Stage); label != "" {
			fmt.Fprintln(w, mutedStyle.Render("> "+label))
		}
	case pipeline.EventTypeError:
		fmt.Fprintln(w, mutedStyle.Render("> Error: "+ev.Message))
	case pipeline.EventTypeComplete:
		fmt.Fprintln(w, mutedStyle.Render("> Done"))
	}
}

func stageLabel(stage domain.Stage) string {
	switch stage {
	case domain.StageGatheringSources:
		return "Gathering sources"
	case domain.StageExtractingContent:
		return "Extracting content"
	case domain.StageGeneratingComponents:
		return "Generating components"
	case domain.StageSelectingComponents:
		return "Choosing components"
	case domain.StageGeneratingFinalScript:
		return "Writing final script"
	default:
		return ""
	}
}

func (r *runOptions) pick(out io.Writer, in *bufio.Reader, cat domain.Category, n int) (int, error) {
	if idx := *r.picks[cat]; idx >= 0 {
		if idx >= n {
			return 0, fmt.Errorf("--%s %d is out of range (%d options)", flagName(cat), idx, n)
		}
		return idx, nil
	}
	if !r.interactive {
		return 0, nil
	}

	for {
		fmt.Fprintf(out, "Choose %s [0-%d, default 0]: ", flagName(cat), n-1)
		line, err := in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil {
				return 0, fmt.Errorf("read %s selection: %w", flagName(cat), err)
			}
			return 0, nil
		}
		idx, convErr := strconv.Atoi(line)
		if convErr == nil && idx >= 0 && idx < n {
			return idx, nil
		}
		fmt.Fprintf(out, "%q is not an option\n", line)
		if err != nil {
			return 0, fmt.Errorf("read %s selection: %w", flagName(cat), err)
		}
	}
}

func flagName(cat domain.Category) string {
	if cat == domain.CategoryGoldenNugget {
		return "nugget"
	}
	return string(cat)
}

func printSources(w io.Writer, sources []domain.Source) {
	fmt.Fprintln(w, headingStyle.Render("Sources"))
	for _, src := range sources {
		status := "extracted"
		if !src.IsTextExtracted {
			status = "snippet only"
			if src.TextExtractionError != "" {
				status += ": " + src.TextExtractionError
			}
		}
		fmt.Fprintf(w, "  %s  %s %s\n", src.Title, mutedStyle.Render(src.Link), mutedStyle.Render("("+status+")"))
	}
	fmt.Fprintln(w)
}

func printComponents(w io.Writer, set *domain.ComponentSet) {
	if set == nil {
		return
	}
	printOptions(w, "Hooks", set.Hooks)
	printOptions(w, "Bridges", set.Bridges)

	fmt.Fprintln(w, headingStyle.Render("Golden nuggets"))
	for i, nugget := range set.GoldenNuggets {
		fmt.Fprintf(w, "  [%d] %s\n", i, nugget.Title)
		for _, bullet := range nugget.BulletPoints {
			fmt.Fprintf(w, "      - %s\n", bullet)
		}
	}
	fmt.Fprintln(w)

	printOptions(w, "Calls to action", set.WTAs)
}

func printOptions(w io.Writer, title string, options []string) {
	fmt.Fprintln(w, headingStyle.Render(title))
	for i, option := range options {
		fmt.Fprintf(w, "  [%d] %s\n", i, option)
	}
	fmt.Fprintln(w)
}
