package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-seat-hold/internal/config"
	"github.com/iliyamo/event-seat-hold/internal/utils"
)

// Prints an access token for local testing of the session endpoints.  Real
// tokens come from the upstream identity service.
func main() {
	var sub, name string
	flag.StringVar(&sub, "sub", "", "user id (random when empty)")
	flag.StringVar(&name, "name", "", "display name")
	flag.Parse()

	cfg := config.Load()
	if sub == "" {
		sub = uuid.NewString()
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, sub, name, time.Duration(cfg.AccessTTLMin)*time.Minute)
	if err != nil {
		logrus.WithError(err).Fatal("cannot sign token")
	}
	logrus.WithFields(logrus.Fields{"sub": sub, "expires_at": tok.Exp.Format(time.RFC3339)}).Info("token issued")
	fmt.Println(tok.Token)
}
