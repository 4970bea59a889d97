// Command issue-token mints session tokens for local testing of the chat server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/sasachat/sasachat/internal/config"
	"github.com/sasachat/sasachat/pkg/jwt"
	pkglog "github.com/sasachat/sasachat/pkg/log"
)

func main() {
	nickname := flag.String("nickname", "", "Nickname carried in the token (required)")
	userID := flag.String("user", "", "User id, random when empty")
	secret := flag.String("secret", "", "Signing secret, read from config when empty")
	issuer := flag.String("issuer", "sasachat", "Token issuer when -secret is given")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	logger := pkglog.L()

	if *nickname == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *userID == "" {
		*userID = uuid.NewString()
	}

	if *secret == "" {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load config")
		}
		*secret = cfg.Auth.Secret
		*issuer = cfg.Auth.Issuer
	}

	manager, err := jwt.NewManager(*secret, *issuer, *ttl)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	token, expiresAt, err := manager.GenerateAccessToken(*userID, *nickname, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to issue token")
	}

	table := tablewriter.NewWriter(os.Stderr)
	table.SetHeader([]string{"User", "Nickname", "Issuer", "Expires"})
	table.SetBorder(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{*userID, *nickname, *issuer, expiresAt.Format(time.RFC3339)})
	table.Render()

	// Token alone on stdout so it can be captured by scripts.
	fmt.Println(token)
}
