package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"whatsapp-sender/internal/broadcast"
	"whatsapp-sender/internal/credentials"
	"whatsapp-sender/internal/database"
	"whatsapp-sender/internal/leads"
	"whatsapp-sender/internal/phone"
	"whatsapp-sender/internal/templates"
	"whatsapp-sender/internal/whatsapp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	refreshTemplates bool

	saveToken      string
	savePhoneID    string
	saveBusinessID string

	leadsFile    string
	templateName string
	languageCode string
	logFile      string
	noHistory    bool
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [number...]",
	Short: "Normalize phone numbers to 65XXXXXXXX",
	Long: `Prints each input with its normalized form, or "invalid".

Example:
  sender normalize "9857 8141" 098578141 +65-9857-8141`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNormalize,
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the approved templates of the business account",
	RunE:  runTemplates,
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Show or save the WhatsApp Cloud API credentials",
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the credentials in effect (token masked)",
	RunE:  runCredentialsShow,
}

var credentialsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the credentials file",
	RunE:  runCredentialsSave,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a template to every valid number of a CSV file",
	Long: `Reads a headerless single-column CSV, drops numbers that do not normalize
and sends the template to the rest in file order. Ctrl-C stops the batch
between two sends.

Example:
  sender send --leads leads.csv --template promo --log ncsf_log.csv`,
	RunE: runSend,
}

func init() {
	templatesCmd.Flags().BoolVar(&refreshTemplates, "refresh", false, "Drop cached listings before fetching")

	credentialsSaveCmd.Flags().StringVar(&saveToken, "token", "", "Access token")
	credentialsSaveCmd.Flags().StringVar(&savePhoneID, "phone-id", "", "Phone number ID")
	credentialsSaveCmd.Flags().StringVar(&saveBusinessID, "business-id", "", "WhatsApp Business Account ID")

	sendCmd.Flags().StringVar(&leadsFile, "leads", "", "CSV file with one phone number per row")
	sendCmd.Flags().StringVar(&templateName, "template", "", "Approved template name")
	sendCmd.Flags().StringVar(&languageCode, "language", "", "Template language code (looked up when empty)")
	sendCmd.Flags().StringVar(&logFile, "log", "", "Write the send log CSV to this file")
	sendCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the run in the database")
	_ = sendCmd.MarkFlagRequired("leads")
	_ = sendCmd.MarkFlagRequired("template")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, raw := range args {
		if number, ok := phone.Normalize(raw); ok {
			fmt.Fprintf(out, "%s\t%s\n", raw, number)
		} else {
			fmt.Fprintf(out, "%s\tinvalid\n", raw)
		}
	}
	return nil
}

// newTemplateCache shares listings through Redis when configured.
func newTemplateCache(client *whatsapp.Client) *templates.Cache {
	var backend templates.Backend
	if cfg.RedisAddr != "" {
		backend = templates.NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword)
	}
	return templates.NewCache(client, backend, cfg.TemplateCacheTTL, logger)
}

func runTemplates(cmd *cobra.Command, args []string) error {
	creds, err := credentials.NewStore(cfg).Load()
	if err != nil {
		return err
	}
	if creds.AccessToken == "" || creds.BusinessAccountID == "" {
		return errors.New("access token and business account ID are required")
	}

	cache := newTemplateCache(whatsapp.NewClient(cfg, logger))
	if refreshTemplates {
		if err := cache.Invalidate(commandContext(cmd)); err != nil {
			return fmt.Errorf("refresh template cache: %w", err)
		}
	}
	list, err := cache.Get(commandContext(cmd), creds.AccessToken, creds.BusinessAccountID)
	if err != nil {
		return fmt.Errorf("fetch templates: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLANGUAGE\tBODY")
	for _, t := range list {
		p := t.Preview()
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Language, p.Body)
	}
	return tw.Flush()
}

func runCredentialsShow(cmd *cobra.Command, args []string) error {
	creds, err := credentials.NewStore(cfg).Load()
	if err != nil {
		return err
	}
	masked := creds.Masked()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Access token:        %s\n", masked.AccessToken)
	fmt.Fprintf(out, "Phone number ID:     %s\n", masked.PhoneNumberID)
	fmt.Fprintf(out, "Business account ID: %s\n", masked.BusinessAccountID)
	return nil
}

func runCredentialsSave(cmd *cobra.Command, args []string) error {
	creds := credentials.Credentials{
		AccessToken:       saveToken,
		PhoneNumberID:     savePhoneID,
		BusinessAccountID: saveBusinessID,
	}
	if !creds.Complete() {
		return errors.New("all fields are required")
	}
	store := credentials.NewStore(cfg)
	if err := store.Save(creds); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Credentials saved to %s\n", store.Path)
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	f, err := os.Open(leadsFile)
	if err != nil {
		return fmt.Errorf("open leads: %w", err)
	}
	batch, err := leads.Parse(f)
	f.Close()
	if err != nil {
		return err
	}
	if len(batch.Leads) == 0 {
		return errors.New("no valid leads to send, check the CSV")
	}

	creds, err := credentials.NewStore(cfg).Load()
	if err != nil {
		return err
	}
	if creds.AccessToken == "" || creds.PhoneNumberID == "" {
		return errors.New("access token and phone number ID are required")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := whatsapp.NewClient(cfg, logger)
	language := languageCode
	if language == "" {
		language = lookupLanguage(ctx, client, creds)
	}

	var recorder broadcast.Recorder
	if !noHistory {
		db, err := database.Open(cfg)
		if err != nil {
			return err
		}
		recorder = database.NewHistoryRepository(db)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sending %q (%s) to %d leads (%d rejected)\n", templateName, language, len(batch.Leads), batch.Rejected)

	sender := broadcast.NewSender(client, cfg.SendDelay, recorder, logger)
	report, err := sender.Run(ctx, broadcast.Job{
		Numbers:      batch.Numbers(),
		TemplateName: templateName,
		LanguageCode: language,
		Credentials:  creds,
	}, func(p broadcast.Progress) {
		fmt.Fprintln(out, p.Line())
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, report.Summary())

	if logFile != "" {
		if err := writeLog(logFile, report.Results); err != nil {
			return err
		}
		fmt.Fprintf(out, "Log written to %s\n", logFile)
	}
	return nil
}

// lookupLanguage finds the template in the listing, falling back to the
// default language for names that are not listed.
func lookupLanguage(ctx context.Context, client *whatsapp.Client, creds credentials.Credentials) string {
	if creds.BusinessAccountID == "" {
		return broadcast.ResolveLanguage(nil)
	}
	list, err := newTemplateCache(client).Get(ctx, creds.AccessToken, creds.BusinessAccountID)
	if err != nil {
		logger.Warn("template listing unavailable, using default language", zap.Error(err))
		return broadcast.ResolveLanguage(nil)
	}
	return broadcast.ResolveLanguage(whatsapp.FindTemplate(list, templateName))
}

func writeLog(path string, results []broadcast.SendResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	if err := broadcast.WriteCSV(f, results); err != nil {
		f.Close()
		return fmt.Errorf("write log: %w", err)
	}
	return f.Close()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
