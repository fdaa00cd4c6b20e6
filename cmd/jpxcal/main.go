package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/jpx-tools/jpxcal/internal/generate"
	"github.com/jpx-tools/jpxcal/internal/jpx"
	"github.com/jpx-tools/jpxcal/internal/jquants"
	"github.com/jpx-tools/jpxcal/internal/notify"
)

const (
	envEmail    = "JQuants_EMAIL_ADDRESS"
	envPassword = "JQuants_PASSWORD"

	defaultOutput = "japan-all-stocks.ics"
)

var (
	outputPath   = flag.String("output", defaultOutput, "(-o) Path of the ICS file to write")
	source       = flag.String("source", "jquants", "Announcement source: jquants or jpx")
	horizonDays  = flag.Int("days", 365, "How many days of the trading calendar to include")
	calendarName = flag.String("calendar-name", "JPX Market Calendar", "Calendar display name (X-WR-CALNAME)")

	smtpServer = flag.String("smtp-server", "smtp.gmail.com", "SMTP server address (default: smtp.gmail.com)")
	smtpPort   = flag.Int("smtp-port", 587, "SMTP server port (default: 587)")
	smtpUser   = flag.String("smtp-user", "", "SMTP username (email address)")
	smtpPass   = flag.String("smtp-pass", "", "SMTP password or App Password")
	toEmail    = flag.String("to-email", "", "Recipient for the generated calendar (optional)")
	fromEmail  = flag.String("from-email", "", "Sender email address (default: smtp-user)")
)

func init() {
	flag.StringVar(outputPath, "o", defaultOutput, "(-o) Path of the ICS file to write (shorthand)")
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	if *source != "jquants" && *source != "jpx" {
		fmt.Printf("Error: unknown source %q (expected jquants or jpx).\n", *source)
		os.Exit(1)
	}

	email := os.Getenv(envEmail)
	password := os.Getenv(envPassword)

	ctx := context.Background()

	gen := &generate.Generator{
		CalendarName: *calendarName,
		HorizonDays:  *horizonDays,
	}

	authenticated := false
	if email != "" && password != "" {
		client := jquants.NewClient(email, password)
		if err := client.Authenticate(ctx); err != nil {
			fmt.Printf("Fatal error authenticating with J-Quants: %v\n", err)
			os.Exit(1)
		}
		authenticated = true
		gen.Calendar = client

		if *source == "jquants" {
			gen.Announcements = client
		}
	}

	switch *source {
	case "jquants":
		if !authenticated {
			fmt.Printf("Error: %s and %s must be set to use the jquants source.\n", envEmail, envPassword)
			os.Exit(1)
		}
	case "jpx":
		gen.Announcements = jpx.NewScraper()
		if !authenticated {
			fmt.Println("No J-Quants credentials found; the calendar will not include market holidays.")
		}
	}

	f, err := os.Create(*outputPath)
	if err != nil {
		fmt.Printf("Fatal error creating %s: %v\n", *outputPath, err)
		os.Exit(1)
	}

	count, err := gen.Run(ctx, f)
	if err != nil {
		f.Close()
		fmt.Printf("Fatal error generating calendar: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Printf("Fatal error writing %s: %v\n", *outputPath, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d events to %s\n", count, *outputPath)

	emailConfig := notify.EmailConfig{
		SMTPServer: *smtpServer,
		SMTPPort:   *smtpPort,
		SMTPUser:   *smtpUser,
		SMTPPass:   *smtpPass,
		ToEmail:    *toEmail,
		FromEmail:  *fromEmail,
		Enabled:    (*smtpServer != "" && *smtpUser != "" && *smtpPass != "" && *toEmail != ""),
	}
	if emailConfig.FromEmail == "" && emailConfig.SMTPUser != "" {
		emailConfig.FromEmail = emailConfig.SMTPUser
	}

	if emailConfig.Enabled {
		if err := notify.NewEmailSender(emailConfig).SendCalendar(*outputPath, count); err != nil {
			os.Exit(1)
		}
	}
}
