package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"moneytrack/internal/core"
)

// maxReceiptBytes bounds the photo embedded in a record.
const maxReceiptBytes = 5 << 20

type addOptions struct {
	title   string
	amount  string
	receipt string
	lat     float64
	lng     float64
}

func newAddCmd(a *app) *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new transaction",
		Example: `  # Record an expense
  moneytrack add --title Food --amount 12,50

  # Attach a receipt photo and the place it was taken
  moneytrack add --title Fuel --amount 60 --receipt ./receipt.jpg --lat 45.46 --lng 9.19`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := opts.draft(cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng"))
			if err != nil {
				return err
			}
			a.backend.Refresh(cmd.Context())
			tx, err := a.backend.Store.Create(cmd.Context(), draft)
			if err != nil {
				return err
			}

			if tx.IsSynced {
				pterm.Success.Printf("Transaction #%s saved and synced to %s\n", tx.ID, a.backend.Store.Status().Remote)
			} else {
				pterm.Warning.Printf("Transaction #%s saved locally only\n", tx.ID)
			}
			renderTransactions([]core.Transaction{tx})
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "what the money was spent on (required)")
	cmd.Flags().StringVarP(&opts.amount, "amount", "a", "", "amount, dot or comma decimal separator (required)")
	cmd.Flags().StringVarP(&opts.receipt, "receipt", "r", "", "path to a receipt image")
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "latitude where the expense happened")
	cmd.Flags().Float64Var(&opts.lng, "lng", 0, "longitude where the expense happened")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("amount")
	cmd.MarkFlagsRequiredTogether("lat", "lng")

	return cmd
}

func (o addOptions) draft(hasLat, hasLng bool) (core.Draft, error) {
	amount, err := core.ParseAmount(o.amount)
	if err != nil {
		return core.Draft{}, fmt.Errorf("invalid amount %q: %w", o.amount, err)
	}
	d := core.Draft{Title: strings.TrimSpace(o.title), Amount: amount}

	if hasLat != hasLng {
		return core.Draft{}, errors.New("--lat and --lng must be given together")
	}
	if hasLat {
		d.Location = &core.Location{Latitude: o.lat, Longitude: o.lng}
	}

	if o.receipt != "" {
		uri, err := receiptDataURI(o.receipt)
		if err != nil {
			return core.Draft{}, err
		}
		d.Receipt = uri
	}
	return d, nil
}

// receiptDataURI reads an image file and encodes it the way the API stores
// receipts: a base64 data URI.
func receiptDataURI(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("read receipt: %w", err)
	}
	if info.Size() > maxReceiptBytes {
		return "", fmt.Errorf("receipt %s is %d bytes, max %d", path, info.Size(), maxReceiptBytes)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read receipt: %w", err)
	}
	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("receipt %s is %s, not an image", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
