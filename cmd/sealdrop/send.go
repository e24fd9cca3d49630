package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/danmuck/sealdrop/internal/client"
	"github.com/danmuck/sealdrop/internal/config"
	"github.com/rs/zerolog/log"
)

type sendOptions struct {
	TransferPath string
	ProfilePath  string
	IdentityPath string
	Server       string
	Name         string
	File         string
}

// resolve merges transfer.info, the optional profile and explicit flags, in
// that order of increasing precedence.
func (o sendOptions) resolve() (client.Config, sendOptions, error) {
	cfg := client.DefaultConfig()
	out := sendOptions{IdentityPath: client.IdentityFile}

	if o.TransferPath != "" {
		info, err := client.LoadTransferInfo(o.TransferPath)
		switch {
		case err == nil:
			out.Server, out.Name, out.File = info.Address, info.Name, info.FilePath
		case errors.Is(err, fs.ErrNotExist):
			log.Debug().Str("path", o.TransferPath).Msg("no transfer file")
		default:
			return client.Config{}, sendOptions{}, err
		}
	}
	if o.ProfilePath != "" {
		p, err := config.LoadClientProfile(o.ProfilePath)
		if err != nil {
			return client.Config{}, sendOptions{}, err
		}
		if cfg, err = p.ClientConfig(); err != nil {
			return client.Config{}, sendOptions{}, err
		}
		out.Server = p.Server
		out.IdentityPath = p.Identity
		if p.Name != "" {
			out.Name = p.Name
		}
	}

	if s := strings.TrimSpace(o.Server); s != "" {
		out.Server = s
	}
	if s := strings.TrimSpace(o.Name); s != "" {
		out.Name = s
	}
	if s := strings.TrimSpace(o.File); s != "" {
		out.File = s
	}
	if s := strings.TrimSpace(o.IdentityPath); s != "" {
		out.IdentityPath = s
	}
	cfg.Address = out.Server

	switch {
	case out.Server == "":
		return client.Config{}, sendOptions{}, client.ErrAddressRequired
	case out.File == "":
		return client.Config{}, sendOptions{}, fmt.Errorf("no file to send")
	}
	return cfg, out, nil
}

// send resumes the saved identity when there is one, registers otherwise and
// uploads the file.
func send(ctx context.Context, cfg client.Config, o sendOptions) error {
	plaintext, err := os.ReadFile(o.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", o.File, err)
	}
	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	if err := connect(ctx, c, o); err != nil {
		return err
	}
	if err := c.Transfer(ctx, o.File, plaintext); err != nil {
		return err
	}
	log.Info().Str("file", o.File).Int("bytes", len(plaintext)).Msg("transfer complete")
	return nil
}

func connect(ctx context.Context, c *client.Client, o sendOptions) error {
	ident, err := client.LoadIdentity(o.IdentityPath)
	switch {
	case err == nil:
		err = c.Reconnect(ctx, ident)
		if err == nil {
			return nil
		}
		if !errors.Is(err, client.ErrReconnectDenied) {
			return err
		}
		log.Warn().Str("name", ident.Name).Msg("reconnect denied, registering again")
		if o.Name == "" {
			o.Name = ident.Name
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return err
	}

	if o.Name == "" {
		return fmt.Errorf("no client name to register")
	}
	if err := c.Register(ctx, o.Name); err != nil {
		return err
	}
	if err := c.ExchangeKeys(ctx); err != nil {
		return err
	}
	if err := client.SaveIdentity(o.IdentityPath, c.Identity()); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	log.Info().Str("path", o.IdentityPath).Msg("identity saved")
	return nil
}
