package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/donationcore/internal/donation/service"
	"github.com/jmerrifield20/donationcore/internal/security"
	"github.com/jmerrifield20/donationcore/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL    string
	cfgFile      string
	outputFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "donorctl",
	Short: "donationcore operator CLI",
	Long: `donorctl drives a donationcore server from the command line.

It can run the phone OTP or password login, sign and verify test payments, and fetch
receipts. Settings are read from ~/.donorctl/config.yaml and DONORCTL_*
environment variables:

  server_url           base URL of the server (default http://localhost:8080)
  token                session token sent with every request
  password             password used by "login" when --password is not given
  razorpay_key_secret  secret used by "payment sign" and "payment verify --sign"`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.donorctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("donorctl")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.donorctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "donationcore server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	rootCmd.AddCommand(otpCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(paymentCmd)
	rootCmd.AddCommand(receiptCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	var opts []client.Option
	if token := viper.GetString("token"); token != "" {
		opts = append(opts, client.WithBearerToken(token))
	}
	return client.New(serverURL, opts...)
}

func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	return ctx, func() { cancel(); stop() }
}

// printResult writes v as indented JSON or as key/value rows.
func printResult(w io.Writer, v any, rows [][2]string) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

// ── otp ──────────────────────────────────────────────────────────────────────

var otpCmd = &cobra.Command{
	Use:   "otp",
	Short: "Run the phone OTP login flow",
}

var otpSendCmd = &cobra.Command{
	Use:   "send <phone-number>",
	Short: "Text a login code to a registered phone number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		sent, err := c.SendOTP(ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), sent, [][2]string{
			{"Phone", sent.PhoneNumber},
			{"Expires", sent.ExpiryTime.Local().Format(time.RFC1123)},
			{"Resend in", fmt.Sprintf("%ds", sent.ResendAvailableInSeconds)},
		})
	},
}

var otpVerifyCmd = &cobra.Command{
	Use:   "verify <phone-number> <code>",
	Short: "Exchange a login code for a session token",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		session, err := c.VerifyOTP(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		rows := [][2]string{
			{"Phone", session.PhoneNumber},
			{"Expires", session.ExpiresAt.Local().Format(time.RFC1123)},
			{"Token", session.Token},
		}
		if session.User != nil {
			rows = append(rows, [2]string{"User", fmt.Sprintf("%s (%s, %s)", session.User.Name, session.User.ID, session.User.UserType)})
		}
		return printResult(cmd.OutOrStdout(), session, rows)
	},
}

func init() {
	otpCmd.AddCommand(otpSendCmd)
	otpCmd.AddCommand(otpVerifyCmd)
}

// ── login ────────────────────────────────────────────────────────────────────

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Exchange email and password for a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			password = viper.GetString("password")
		}
		if password == "" {
			return fmt.Errorf("password is required (--password or DONORCTL_PASSWORD)")
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		session, err := c.Login(ctx, args[0], password)
		if err != nil {
			return err
		}
		rows := [][2]string{
			{"Expires", session.ExpiresAt.Local().Format(time.RFC1123)},
			{"Token", session.Token},
		}
		if session.User != nil {
			rows = append(rows, [2]string{"User", fmt.Sprintf("%s (%s, %s)", session.User.Email, session.User.ID, session.User.UserType)})
		}
		return printResult(cmd.OutOrStdout(), session, rows)
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
}

// ── payment ──────────────────────────────────────────────────────────────────

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Create orders and verify payments",
}

func signer() (*service.SignatureVerifier, error) {
	secret := security.SanitizeCredential(viper.GetString("razorpay_key_secret"))
	if secret == "" {
		return nil, fmt.Errorf("razorpay_key_secret is not set (config file or DONORCTL_RAZORPAY_KEY_SECRET)")
	}
	return service.NewSignatureVerifier(secret), nil
}

var paymentSignCmd = &cobra.Command{
	Use:   "sign <order-id> <payment-id>",
	Short: "Print the gateway signature for an order and payment pair",
	Long: `sign computes the HMAC-SHA256 signature the gateway would send for the
given order and payment IDs. Useful for exercising "payment verify" in
test mode without a real checkout.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signer()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.Sign(args[0], args[1]))
		return nil
	},
}

var orderReq client.CreateOrderRequest

var paymentOrderCmd = &cobra.Command{
	Use:   "create-order",
	Short: "Open a gateway order for a donation",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		order, err := c.CreateOrder(ctx, orderReq)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), order, [][2]string{
			{"Order", order.ID},
			{"Amount", fmt.Sprintf("%d paise %s", order.Amount, order.Currency)},
			{"Receipt", order.Receipt},
			{"Status", order.Status},
			{"Mode", order.Mode},
		})
	},
}

var (
	verifyReq  client.VerifyPaymentRequest
	verifySign bool
	verifyAmt  string
)

var paymentVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a completed payment and issue its receipt",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := verifyReq
		req.Amount = json.Number(verifyAmt)
		if verifySign {
			s, err := signer()
			if err != nil {
				return err
			}
			req.RazorpaySignature = s.Sign(req.RazorpayOrderID, req.RazorpayPaymentID)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		res, err := c.VerifyPayment(ctx, req)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), res, [][2]string{
			{"Result", res.Message},
			{"Receipt", res.ReceiptID},
			{"Payment", res.PaymentID},
			{"Order", res.OrderID},
			{"Download", res.DownloadReference},
			{"Email sent", fmt.Sprint(res.EmailSent)},
			{"Replay", fmt.Sprint(res.AlreadyProcessed)},
		})
	},
}

func init() {
	paymentOrderCmd.Flags().StringVar(&orderReq.CampaignID, "campaign", "", "Campaign ID (required)")
	paymentOrderCmd.Flags().StringVar(&orderReq.UserID, "user", "", "Donor user ID (required)")
	paymentOrderCmd.Flags().Int64Var(&orderReq.Amount, "amount", 0, "Amount in whole rupees (required)")
	_ = paymentOrderCmd.MarkFlagRequired("campaign")
	_ = paymentOrderCmd.MarkFlagRequired("user")
	_ = paymentOrderCmd.MarkFlagRequired("amount")

	f := paymentVerifyCmd.Flags()
	f.StringVar(&verifyReq.RazorpayOrderID, "order", "", "Gateway order ID (required)")
	f.StringVar(&verifyReq.RazorpayPaymentID, "payment", "", "Gateway payment ID (required)")
	f.StringVar(&verifyReq.RazorpaySignature, "signature", "", "Gateway signature")
	f.BoolVar(&verifySign, "sign", false, "Compute the signature locally from razorpay_key_secret")
	f.StringVar(&verifyReq.CampaignID, "campaign", "", "Campaign ID")
	f.StringVar(&verifyReq.UserID, "user", "", "Donor user ID")
	f.StringVar(&verifyReq.DonorName, "name", "", "Donor name")
	f.StringVar(&verifyReq.DonorEmail, "email", "", "Donor email")
	f.StringVar(&verifyReq.DonorPhone, "phone", "", "Donor phone number")
	f.StringVar(&verifyAmt, "amount", "", "Amount in rupees, e.g. 500 or 500.50")
	_ = paymentVerifyCmd.MarkFlagRequired("order")
	_ = paymentVerifyCmd.MarkFlagRequired("payment")
	_ = paymentVerifyCmd.MarkFlagRequired("amount")
	paymentVerifyCmd.MarkFlagsMutuallyExclusive("signature", "sign")

	paymentCmd.AddCommand(paymentSignCmd)
	paymentCmd.AddCommand(paymentOrderCmd)
	paymentCmd.AddCommand(paymentVerifyCmd)
}

// ── receipt ──────────────────────────────────────────────────────────────────

var receiptCmd = &cobra.Command{
	Use:   "receipt",
	Short: "Fetch issued receipts",
}

var receiptOut string

var receiptDownloadCmd = &cobra.Command{
	Use:   "download <payment-id>",
	Short: "Download the PDF receipt for a payment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		pdf, err := c.DownloadReceipt(ctx, args[0])
		if err != nil {
			return err
		}
		out := receiptOut
		if out == "" {
			out = "receipt-" + args[0] + ".pdf"
		}
		if err := os.WriteFile(out, pdf, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d bytes)\n", out, len(pdf))
		return nil
	},
}

var receiptShowCmd = &cobra.Command{
	Use:   "show <payment-id>",
	Short: "Show the stored receipt record for a payment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		rec, err := c.GetReceipt(ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), rec, [][2]string{
			{"Receipt", rec.ID},
			{"Payment", rec.PaymentID},
			{"Order", rec.OrderID},
			{"Donor", fmt.Sprintf("%s <%s> %s", rec.DonorName, rec.DonorEmail, rec.DonorPhone)},
			{"Amount", rec.Currency + " " + rec.Amount},
			{"Issued", rec.IssuedAt.Local().Format(time.RFC1123)},
		})
	},
}

func init() {
	receiptDownloadCmd.Flags().StringVarP(&receiptOut, "output", "o", "", "Output file (default receipt-<payment-id>.pdf)")
	receiptCmd.AddCommand(receiptDownloadCmd)
	receiptCmd.AddCommand(receiptShowCmd)
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the donorctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "donorctl %s\n", version)
	},
}
