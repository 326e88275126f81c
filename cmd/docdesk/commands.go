package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/capture"
	"github.com/dharsanguruparan/DocDesk/internal/form"
	"github.com/dharsanguruparan/DocDesk/internal/model"
	"github.com/dharsanguruparan/DocDesk/internal/session"
	"github.com/dharsanguruparan/DocDesk/internal/terminal"
	"github.com/dharsanguruparan/DocDesk/internal/upload"
	"github.com/dharsanguruparan/DocDesk/internal/workflow"
)

func newLoginCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			if user == "" {
				fmt.Fprint(out, "Login: ")
				line, err := in.ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read login: %w", err)
				}
				user = strings.TrimSpace(line)
			}
			fmt.Fprint(out, "Password: ")
			password, err := in.ReadString('\n')
			if err != nil && password == "" {
				return fmt.Errorf("read password: %w", err)
			}

			resp, err := a.client().Login(cmd.Context(), user, strings.TrimRight(password, "\r\n"))
			if err != nil {
				return err
			}
			sess := session.FromLogin(user, a.cfg.APIBaseURL, resp)
			if !sess.Allows(a.cfg.RequiredPermissions) {
				return fmt.Errorf("account %s lacks the permissions %s", user, strings.Join(a.cfg.RequiredPermissions, ", "))
			}
			if err := session.Save(a.cfg.SessionFile, sess); err != nil {
				return err
			}
			a.log.Debug("session saved", zap.String("file", a.cfg.SessionFile))
			fmt.Fprintf(out, "Logged in as %s until %s\n", user, sess.ExpiresAt.Local().Format(time.DateTime))
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Login name")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return session.Clear(a.cfg.SessionFile)
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the logged in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sess, err := a.authedClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "login:       %s\n", sess.Login)
			fmt.Fprintf(out, "backend:     %s\n", sess.BaseURL)
			fmt.Fprintf(out, "expires:     %s\n", sess.ExpiresAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "permissions: %s\n", strings.Join(sess.Permissions, ", "))
			return nil
		},
	}
}

func newDocTypesCmd(a *app) *cobra.Command {
	var entity string
	cmd := &cobra.Command{
		Use:   "doc-types",
		Short: "List the active document types",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.authedClient()
			if err != nil {
				return err
			}
			types, err := client.ActiveDocumentTypes(cmd.Context())
			if err != nil {
				return a.expired(err)
			}
			if entity != "" {
				e, err := model.ParseEntityType(entity)
				if err != nil {
					return err
				}
				types = model.FilterDocumentTypes(types, e)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY")
			for _, t := range types {
				fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Nome, typeCategory(t))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "Only types of this category (student, staff, institution)")
	return cmd
}

func typeCategory(t model.DocumentType) string {
	for _, e := range model.EntityTypes {
		if t.AppliesTo(e) {
			return e.Label()
		}
	}
	return ""
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <student|staff> <name>",
		Short: "Look up document owners by name",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := model.ParseEntityType(args[0])
			if err != nil {
				return err
			}
			client, _, err := a.authedClient()
			if err != nil {
				return err
			}
			owners, err := client.SearchOwners(cmd.Context(), entity, strings.Join(args[1:], " "), limit)
			if err != nil {
				return a.expired(err)
			}
			if len(owners) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, o := range owners {
				fmt.Fprintf(w, "%d\t%s\n", o.ID, o.Name)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", form.DefaultMaxResults, "Maximum number of results")
	return cmd
}

func newDigitalizeCmd(a *app) *cobra.Command {
	var (
		presets terminal.Presets
		entity  string
		inbox   string
	)
	cmd := &cobra.Command{
		Use:   "digitalize [image...]",
		Short: "Capture, describe and upload documents",
		Long: `digitalize walks through the digitalization workflow: pick the owner
category, fill in the metadata, capture pages and upload them as one PDF.

Pages come from the image files given as arguments, in order, or from a
scanner output folder passed with --inbox.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, sess, err := a.authedClient()
			if err != nil {
				return err
			}
			if !sess.Allows(a.cfg.RequiredPermissions) {
				return fmt.Errorf("account %s lacks the permissions %s", sess.Login, strings.Join(a.cfg.RequiredPermissions, ", "))
			}
			if entity != "" {
				if presets.Entity, err = model.ParseEntityType(entity); err != nil {
					return err
				}
			}

			ui := terminal.New(cmd.InOrStdin(), cmd.OutOrStdout(), client,
				terminal.WithPresets(presets),
				terminal.WithSearch(a.cfg.SearchDebounce, a.cfg.SearchMinQuery, a.cfg.SearchMaxResults),
				terminal.WithSearchWait(a.cfg.SearchDebounce+a.cfg.APITimeout+time.Second),
				terminal.WithFormOptions(form.WithLogger(a.log)),
			)
			var scanner capture.Scanner
			switch {
			case len(args) > 0:
				scanner = capture.NewFileScanner(args...)
			case inbox != "":
				scanner = capture.NewDirScanner(inbox, ui)
			default:
				return errors.New("pass image files or --inbox")
			}

			if err := os.MkdirAll(a.cfg.WorkDir, 0o700); err != nil {
				return fmt.Errorf("create work dir: %w", err)
			}
			normalizer := capture.NewNormalizer(filepath.Join(a.cfg.WorkDir, "pages"), a.cfg.MaxImageWidth, a.cfg.JPEGQuality)
			ctrl := workflow.NewController(ctx, workflow.WithLogger(a.log))
			runner := workflow.NewRunner(ctrl, ui,
				capture.NewStage(scanner, normalizer, ui, a.log),
				upload.NewStage(client, a.cfg.WorkDir, a.log),
				a.log)
			return a.expired(runner.Run(ctx))
		},
	}
	f := cmd.Flags()
	f.StringVarP(&entity, "entity", "e", "", "Owner category: student, staff or institution")
	f.StringVar(&presets.OwnerQuery, "owner", "", "Search the owner by this name")
	f.StringVarP(&presets.DocumentType, "type", "t", "", "Document type name")
	f.StringVarP(&presets.Date, "date", "d", "", "Document date (YYYY-MM-DD)")
	f.StringVarP(&presets.Location, "location", "l", "", "Physical location of the paper original")
	f.StringVar(&presets.Title, "title", "", "Title of an institutional document")
	f.StringVar(&inbox, "inbox", "", "Folder the scanner saves pages into")
	return cmd
}
