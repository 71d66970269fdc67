package main

import (
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/utils"
)

func main() {
	size := flag.Int("bytes", utils.MinSecretBytes, "number of random bytes per secret")
	flag.Parse()

	accessSecret, refreshSecret, err := utils.GenerateJWTSecrets(*size)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to generate secrets")
	}

	fmt.Println("# Paste into .env; never commit these values")
	fmt.Printf("JWT_SECRET=%s\n", accessSecret)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", refreshSecret)
}
