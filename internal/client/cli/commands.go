package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/client/client"
	"github.com/dmitrijs2005/secureshare/internal/common"
)

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *App) Status(ctx context.Context, args []string) error {
	fs := a.flagSet("status")
	fileID := fs.String("f", "", "file id")
	if err := fs.Parse(args); err != nil || *fileID == "" {
		fs.Usage()
		return ErrUsage
	}

	f, err := a.api.Describe(ctx, *fileID)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "file:      %s\n", f.FileID)
	fmt.Fprintf(a.out, "state:     %s\n", f.State)
	fmt.Fprintf(a.out, "size:      %d bytes\n", f.FileSize)
	fmt.Fprintf(a.out, "downloads: %d\n", f.DownloadCount)
	if f.BurnAfterRead {
		fmt.Fprintln(a.out, "burn after read: yes")
	}
	if f.ExpiresAt != nil {
		fmt.Fprintf(a.out, "expires:   %s\n", f.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func (a *App) Verify(ctx context.Context, args []string) error {
	fs := a.flagSet("verify")
	fileID := fs.String("f", "", "file id")
	phone := fs.String("p", "", "phone number the passcode was sent to")
	if err := fs.Parse(args); err != nil || *fileID == "" {
		fs.Usage()
		return ErrUsage
	}

	g, err := a.verify(ctx, *fileID, *phone)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "verified, grant valid until %s\n", g.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintln(a.out, g.Token)
	return nil
}

func (a *App) verify(ctx context.Context, fileID, phone string) (*client.Grant, error) {
	var err error
	if phone == "" {
		if phone, err = GetSimpleText(a.reader, "Phone number:", a.out); err != nil {
			return nil, err
		}
	}
	code, err := GetPasscode(a.reader, a.out)
	if err != nil {
		return nil, err
	}
	// A malformed code would still cost a server-side attempt.
	if len(code) != common.PasscodeLength || strings.Trim(code, "0123456789") != "" {
		return nil, fmt.Errorf("%w: the passcode is %d digits", ErrInvalidInput, common.PasscodeLength)
	}
	return a.api.Verify(ctx, fileID, phone, code)
}

// decryptionParams is written next to the blob; the key material itself
// never leaves the sender.
type decryptionParams struct {
	FileID            string `json:"fileId"`
	EncryptedFileName string `json:"encryptedFileName"`
	FileSize          int64  `json:"fileSize"`
	FileSalt          []byte `json:"fileSalt"`
	FileIV            []byte `json:"fileIv"`
	MasterKeyHash     string `json:"masterKeyHash"`
	MetadataIV        []byte `json:"metadataIv"`
}

func (a *App) Fetch(ctx context.Context, args []string) error {
	fs := a.flagSet("fetch")
	fileID := fs.String("f", "", "file id")
	phone := fs.String("p", "", "phone number the passcode was sent to")
	grant := fs.String("grant", "", "download grant from a previous verify")
	output := fs.String("o", "", "output path (default <file id>.enc)")
	if err := fs.Parse(args); err != nil || *fileID == "" {
		fs.Usage()
		return ErrUsage
	}
	if *output == "" {
		*output = *fileID + ".enc"
	}

	token := *grant
	if token == "" {
		g, err := a.verify(ctx, *fileID, *phone)
		if err != nil {
			return err
		}
		token = g.Token
	}

	md, err := a.api.DownloadMetadata(ctx, *fileID, token)
	if err != nil {
		return err
	}

	n, err := a.saveBlob(ctx, md.DownloadURL, *output)
	if err != nil {
		return err
	}
	if err := writeParams(*output+".json", md); err != nil {
		return err
	}

	receipt, err := a.api.RecordDownload(ctx, *fileID, token)
	if err != nil {
		return fmt.Errorf("blob saved but download was not recorded: %w", err)
	}

	fmt.Fprintf(a.out, "saved %d bytes to %s\n", n, *output)
	if receipt.Burned {
		fmt.Fprintln(a.out, "the file has been deleted from the server")
	}
	return nil
}

func (a *App) saveBlob(ctx context.Context, url, path string) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}

	n, err := a.api.FetchBlob(ctx, url, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

func writeParams(path string, md *client.DownloadMetadata) error {
	b, err := json.MarshalIndent(decryptionParams{
		FileID:            md.FileID,
		EncryptedFileName: md.EncryptedFileName,
		FileSize:          md.FileSize,
		FileSalt:          md.FileSalt,
		FileIV:            md.FileIV,
		MasterKeyHash:     md.MasterKeyHash,
		MetadataIV:        md.MetadataIV,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
