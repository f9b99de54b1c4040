package config

import (
	"os"
	"sync"
)

// MailboxConfig holds the IMAP endpoint for resume ingestion.
type MailboxConfig struct {
	Addr     string // host:port, TLS
	Username string
	Password string
}

var (
	mailboxConfig *MailboxConfig
	mailboxOnce   sync.Once
)

func LoadMailboxConfig() *MailboxConfig {
	mailboxOnce.Do(func() {
		mailboxConfig = &MailboxConfig{
			Addr:     os.Getenv("IMAP_ADDR"),
			Username: os.Getenv("IMAP_USERNAME"),
			Password: os.Getenv("IMAP_PASSWORD"),
		}
	})
	return mailboxConfig
}
