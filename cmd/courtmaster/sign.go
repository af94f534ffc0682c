package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"courtmaster/internal/infrastructure/vnpay"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// signCmd helps support staff reproduce a gateway signature by hand.
func signCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "sign key=value [key=value...]",
		Short: "Print the canonical string and signature for gateway parameters",
		Long: `Print the canonical string and HMAC-SHA512 signature for a set of gateway parameters.
Only vnp_ fields are signed; vnp_SecureHash and vnp_SecureHashType are ignored.

Examples:
  courtmaster sign vnp_TxnRef=ABCD1234 vnp_Amount=10000000 vnp_ResponseCode=00
  courtmaster sign --secret XYZ vnp_TxnRef=ABCD1234`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			if secret == "" {
				secret = os.Getenv("VNPAY_SECRET_KEY")
			}
			if secret == "" {
				return errors.New("no secret: pass --secret or set VNPAY_SECRET_KEY")
			}

			params := make(map[string]string, len(args))
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid argument %q, want key=value", arg)
				}
				params[k] = v
			}

			signed := vnpay.SignedFields(params)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "canonical: %s\n", vnpay.Canonicalize(signed))
			fmt.Fprintf(out, "signature: %s\n", vnpay.NewSigner(secret).Sign(signed))

			if claimed, ok := params[vnpay.ParamSecureHash]; ok {
				valid, reason := vnpay.NewSigner(secret).Verify(params)
				if valid {
					fmt.Fprintln(out, "vnp_SecureHash: valid")
				} else {
					fmt.Fprintf(out, "vnp_SecureHash: %s (%s)\n", reason, claimed)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "hash secret (defaults to VNPAY_SECRET_KEY)")
	return cmd
}
