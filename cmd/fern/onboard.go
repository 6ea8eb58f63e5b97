package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/onboarding"
	"github.com/Ramsey-B/fern/pkg/resolver"
)

var onboardLocal bool

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Walk through onboarding a business interactively",
	Long: `Prompt for a business, resolve it against stored records and the
directory, then collect competitors until at least one is saved.

With --local the in-memory store and demo directory are used and nothing
outside the process is contacted.`,
	RunE: runOnboard,
}

func init() {
	onboardCmd.Flags().BoolVar(&onboardLocal, "local", false, "Use the in-memory store and demo directory")
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if onboardLocal {
		cfg.StoreBackend = config.StoreBackendMemory
		cfg.DirectoryProvider = config.DirectoryProviderStatic
		cfg.RedisEnabled = false
		cfg.KafkaEnabled = false
		cfg.GraphEnabled = false
	}

	// keep the prompt readable; only warnings and errors reach the terminal
	logger, sync, err := logging.New(cfg.AppName, "warn", true)
	if err != nil {
		return err
	}
	defer sync()

	ctx := cmd.Context()
	a := newApp(cfg, logger)
	if err := a.start(ctx); err != nil {
		return err
	}
	defer func() { _ = a.stop(context.Background()) }()

	p := &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
	return p.run(ctx, a.workflow)
}

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s ", color.CyanString(label+":"))
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) status(symbol, message string, attr color.Attribute) {
	fmt.Fprintf(p.out, "%s %s\n", color.New(attr).Sprint(symbol), message)
}

func (p *prompter) run(ctx context.Context, wf *onboarding.Workflow) error {
	name, err := p.ask("Business name")
	if err != nil {
		return err
	}
	address, err := p.ask("Business address")
	if err != nil {
		return err
	}

	resp, err := wf.Start(ctx, onboarding.StartInput{Name: name, Address: address})
	if err != nil {
		return err
	}

	for resp.Business.Status != resolver.StatusResolved {
		in, err := p.businessInput(*resp.Business)
		if err != nil {
			return err
		}
		if resp, err = wf.RespondBusiness(ctx, resp.SessionID, in); err != nil {
			return err
		}
	}
	p.status("✓", fmt.Sprintf("Business %s", resp.BusinessID), color.FgGreen)

	for !resp.Complete {
		p.status("→", "Add a competitor", color.FgYellow)
		in, err := p.competitorFields()
		if err != nil {
			return err
		}
		if resp, err = wf.AddCompetitors(ctx, resp.SessionID, []resolver.CompetitorInput{in}); err != nil {
			return err
		}
		if err := p.finishCompetitor(ctx, wf, resp); err != nil {
			return err
		}
		if resp, err = wf.Status(ctx, resp.SessionID); err != nil {
			return err
		}
	}

	fmt.Fprintf(p.out, "\n%s Onboarding complete for %s\n", color.GreenString("✓"), resp.BusinessID)
	return nil
}

func (p *prompter) businessInput(result resolver.Result) (resolver.BusinessInput, error) {
	var in resolver.BusinessInput
	switch result.Status {
	case resolver.StatusNeedsConfirmation:
		decision, err := p.choose(result.Candidates)
		in.Decision = decision
		return in, err
	case resolver.StatusNeedsFields:
		for _, field := range result.Missing {
			v, err := p.ask(field)
			if err != nil {
				return in, err
			}
			switch field {
			case "business_type":
				in.BusinessType = v
			case "description":
				in.Description = v
			}
		}
		return in, nil
	default:
		p.status("✗", result.Error, color.FgRed)
		if result.ErrorKind != models.ErrorKindInvalidInput {
			return in, result.Err
		}
		return in, nil
	}
}

func (p *prompter) competitorFields() (resolver.CompetitorInput, error) {
	var in resolver.CompetitorInput
	var err error
	if in.Name, err = p.ask("Competitor name"); err != nil {
		return in, err
	}
	if in.Address, err = p.ask("Competitor address (blank to skip directory lookup)"); err != nil {
		return in, err
	}
	in.LookupDirectory = in.Address != ""
	return in, nil
}

func (p *prompter) finishCompetitor(ctx context.Context, wf *onboarding.Workflow, resp *onboarding.Response) error {
	for _, r := range resp.Competitors {
		result := r.Result
	steps:
		for {
			var in resolver.CompetitorInput
			switch result.Status {
			case resolver.StatusResolved:
				p.status("✓", fmt.Sprintf("Competitor %s", result.ID), color.FgGreen)
				break steps
			case resolver.StatusFailed:
				p.status("✗", result.Error, color.FgRed)
				if result.State == resolver.StateFailed || result.ErrorKind != models.ErrorKindInvalidInput {
					break steps
				}
			case resolver.StatusNeedsConfirmation:
				decision, err := p.choose(result.Candidates)
				if err != nil {
					return err
				}
				in.Decision = decision
			case resolver.StatusNeedsFields:
				for _, field := range result.Missing {
					v, err := p.ask(field)
					if err != nil {
						return err
					}
					switch field {
					case "name":
						in.Name = v
					case "website_url":
						in.WebsiteURL = v
					}
				}
			}

			next, err := wf.RespondCompetitor(ctx, resp.SessionID, r.Index, in)
			if err != nil {
				return err
			}
			result = next.Competitors[0].Result
		}
	}
	return nil
}

func (p *prompter) choose(candidates []models.Candidate) (resolver.Decision, error) {
	for i, c := range candidates {
		fmt.Fprintf(p.out, "  %d) %s, %s", i+1, c.Name, c.Address)
		if c.Source == models.CandidateSourceDirectory {
			fmt.Fprint(p.out, color.HiBlackString(" [directory]"))
		}
		fmt.Fprintln(p.out)
	}
	answer, err := p.ask("Pick a number, or n for none")
	if err != nil {
		return resolver.Decision{}, err
	}
	if n, err := strconv.Atoi(answer); err == nil {
		return resolver.Decision{Selection: n}, nil
	}
	return resolver.Decision{RejectAll: true}, nil
}
