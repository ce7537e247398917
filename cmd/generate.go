package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/session"
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Stream a curriculum to stdout (no database)",
	Long: `Generate a curriculum for a topic and print each section as soon as it is
decoded.

This is a stateless developer tool: no database and no session history.
Useful for evaluating curriculum quality. With --raw the model text is
relayed unchanged; with --interactive you answer the questions on stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("topic", "", "Topic to teach (or pass it as the argument)")
	generateCmd.Flags().Int("sections", 0, "Number of sections (default from config)")
	generateCmd.Flags().Bool("raw", false, "Print the raw model output instead of decoded sections")
	generateCmd.Flags().BoolP("interactive", "i", false, "Answer the questions as they arrive")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	topic, _ := cmd.Flags().GetString("topic")
	if topic == "" && len(args) == 1 {
		topic = args[0]
	}
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("a topic is required")
	}
	raw, _ := cmd.Flags().GetBool("raw")
	interactive, _ := cmd.Flags().GetBool("interactive")
	if raw && interactive {
		return fmt.Errorf("--raw and --interactive cannot be combined")
	}

	rt, err := setup(cmd, setupOpts{Quiet: true, NoStore: true})
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	sections, _ := cmd.Flags().GetInt("sections")
	if sections <= 0 {
		sections = rt.Config.Curriculum.Sections
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	switch {
	case raw:
		return relayRaw(ctx, rt.Curriculum, out, topic, sections)
	case interactive:
		ctrl := session.NewController(uuid.NewString(), rt.Config.Session(sections), rt.SessionDeps())
		defer ctrl.Reset()
		return playLines(ctx, ctrl, cmd.InOrStdin(), out, topic)
	default:
		return printSections(ctx, rt.Curriculum, out, cmd.ErrOrStderr(), topic, sections)
	}
}

func relayRaw(ctx context.Context, dec *curriculum.Decoder, out io.Writer, topic string, sections int) error {
	chunks, err := dec.OpenRaw(ctx, topic, sections)
	if err != nil {
		return err
	}
	for c := range chunks {
		if c.Err != nil {
			return c.Err
		}
		fmt.Fprint(out, c.Text)
	}
	fmt.Fprintln(out)
	return nil
}

// printSections prints each section once it resolves, then the stream
// summary on errOut.
func printSections(ctx context.Context, dec *curriculum.Decoder, out, errOut io.Writer, topic string, sections int) error {
	h, err := dec.Start(ctx, topic, sections)
	if err != nil {
		return err
	}
	defer h.Cancel()

	printed := 0
	for {
		changed := h.Changed()
		snap := h.Snapshot()
		for ; printed < snap.Resolved(); printed++ {
			sec, _ := snap.Section(printed)
			writeSection(out, printed, snap.Total, sec)
		}
		if snap.Complete {
			break
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	res := h.Result()
	fmt.Fprintf(errOut, "status: %s (%d/%d sections", res.Status, printed, sections)
	if res.DecodeErrors > 0 {
		fmt.Fprintf(errOut, ", %d rejected updates", res.DecodeErrors)
	}
	fmt.Fprintln(errOut, ")")
	for _, p := range res.Problems {
		fmt.Fprintf(errOut, "  - %s\n", p)
	}
	if res.Status == curriculum.StatusFailed {
		return res.Err
	}
	return nil
}

func writeSection(w io.Writer, i, total int, sec curriculum.Section) {
	fmt.Fprintf(w, "── Section %d/%d ──\n", i+1, total)
	switch sec.Kind {
	case curriculum.KindParagraph:
		fmt.Fprintln(w, sec.Paragraph.Title)
		fmt.Fprintln(w, sec.Paragraph.Content)
	case curriculum.KindShortAnswer:
		fmt.Fprintln(w, sec.ShortAnswer.Question)
	case curriculum.KindMultipleChoice:
		fmt.Fprintln(w, sec.MultipleChoice.Question)
		for j, c := range sec.MultipleChoice.Choices {
			fmt.Fprintf(w, "  %d) %s\n", j+1, c)
		}
	case curriculum.KindEnd:
		fmt.Fprintln(w, "(end of lesson)")
	}
	fmt.Fprintln(w)
}

// playLines runs a session over line-based input. Paragraphs advance on
// any line; questions are graded until answered correctly.
func playLines(ctx context.Context, ctrl *session.Controller, in io.Reader, out io.Writer, topic string) error {
	if err := ctrl.RequestCurriculum(ctx, topic); err != nil {
		return err
	}
	scanner := bufio.NewScanner(in)
	shown := -1
	var correct, wrong int

	for {
		var changed <-chan struct{}
		if h := ctrl.Handle(); h != nil {
			changed = h.Changed()
		}
		v := ctrl.View()

		switch v.Phase {
		case session.PhaseFinished:
			fmt.Fprintf(out, "Done: %d/%d sections, %d correct, %d wrong answers.\n",
				v.Progress.Position, v.Progress.Total, correct, wrong)
			if v.Stream != nil && v.Stream.Error != "" {
				fmt.Fprintln(out, "The lesson stopped early:", v.Stream.Error)
			}
			return nil
		case session.PhaseIdle:
			return fmt.Errorf("session was reset")
		case session.PhaseStreaming:
			select {
			case <-changed:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		sec := *v.Current
		if shown != v.State.Position {
			writeSection(out, v.State.Position, v.Progress.Total, sec)
			shown = v.State.Position
		}

		if !sec.Answerable() {
			fmt.Fprint(out, "[Enter to continue] ")
			if !scanner.Scan() {
				fmt.Fprintln(out, "\n(input closed)")
				return scanner.Err()
			}
			ctrl.Skip()
			continue
		}

		fmt.Fprint(out, "Your answer: ")
		if !scanner.Scan() {
			fmt.Fprintln(out, "\n(input closed)")
			return scanner.Err()
		}
		res := ctrl.SubmitAnswer(ctx, strings.TrimSpace(scanner.Text()))
		switch res.Outcome {
		case session.OutcomeAdvanced:
			correct++
			fmt.Fprintln(out, "\033[32m✓ Correct!\033[0m")
		case session.OutcomeIncorrect:
			wrong++
			fmt.Fprintln(out, "\033[31m✗ Not quite.\033[0m Try again.")
		default:
			if res.Message != "" {
				fmt.Fprintln(out, res.Message)
			}
		}
		if res.Verdict != nil && res.Verdict.Explanation != "" {
			fmt.Fprintf(out, "Explanation: %s\n", res.Verdict.Explanation)
		}
		fmt.Fprintln(out)
	}
}
