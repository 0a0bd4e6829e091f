package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/tripflow/internal/plan"
	"github.com/randalmurphal/tripflow/internal/server"
	"github.com/randalmurphal/tripflow/internal/trip"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
)

func newPlanCmd(root *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "plan [request]",
		Short: "Plan a trip interactively in the terminal",
		Long: "Plan a trip interactively. The request is taken from the arguments or,\n" +
			"when none are given, from the first line of standard input. With\n" +
			"--session an existing session is continued instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := root.settings
			logger := s.Log.NewLogger(os.Stderr)

			a, err := newApp(cmd.Context(), s, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			req := trip.RunRequest{SessionID: sessionID}
			if sessionID == "" {
				text := strings.Join(args, " ")
				if text == "" {
					fmt.Fprint(out, "请描述您的出差需求：\n> ")
					if text, err = readLine(in); err != nil {
						return err
					}
				}
				req.Input = &text
			}
			return interact(cmd.Context(), a.service, req, in, out)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	return cmd
}

// interact drives a session until it completes or fails, answering each
// prompt with a line read from in. A rejected answer re-asks the same
// prompt.
func interact(ctx context.Context, sessions server.Sessions, req trip.RunRequest, in *bufio.Reader, out io.Writer) error {
	resp, err := sessions.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "会话 %s\n", resp.SessionID)

	for {
		switch resp.Status {
		case trip.StatusCompleted:
			fmt.Fprintf(out, "\n%s\n", resp.Report)
			return nil
		case trip.StatusFailed:
			return fmt.Errorf("session %s failed at %s: %s", resp.SessionID, resp.Stage, resp.Error)
		}

		showPrompt(out, resp.Prompt)
		line, err := readLine(in)
		if err != nil {
			return err
		}

		next, err := sessions.Run(ctx, trip.RunRequest{
			SessionID: resp.SessionID,
			Resume:    answer(resp.Prompt, line),
			Resuming:  true,
		})
		if flowgraph.IsProtocolViolation(err) {
			fmt.Fprintf(out, "输入无效：%v\n", err)
			continue
		}
		if err != nil {
			return err
		}
		resp = next
	}
}

func showPrompt(out io.Writer, p *plan.Prompt) {
	fmt.Fprintln(out)
	if p.FinalReport != "" {
		fmt.Fprintln(out, p.FinalReport)
		fmt.Fprintln(out)
	}
	for _, text := range []string{p.Title, p.Message} {
		if text != "" {
			fmt.Fprintln(out, text)
		}
	}
	for i, o := range p.Options {
		if p.Type == plan.PromptCompanySelection {
			fmt.Fprintf(out, "  %d. %s\n", i+1, o)
			continue
		}
		fmt.Fprintf(out, "  %s\n", o)
	}
	fmt.Fprint(out, "> ")
}

// answer shapes a typed line for the prompt it answers.
func answer(p *plan.Prompt, line string) any {
	if p != nil && p.Type == plan.PromptCompanySelection {
		var names []any
		for _, n := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == '，' || r == '、' }) {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		return names
	}
	return line
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", errors.New("input closed before the session finished")
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
