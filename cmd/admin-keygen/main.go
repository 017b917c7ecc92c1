package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"teambot/internal/admin"
)

func main() {
	s := flag.String("key", os.Getenv("TEAMBOT_ADMIN_KEY"), "Key used to sign the admin JWT")
	sub := flag.String("sub", "admin", "Subject recorded in the token")
	e := flag.String("exp", time.Now().Add(time.Hour*24*365/2).Format(time.RFC3339), "RFC3339 time of the expiration date")
	flag.Parse()

	if *s == "" {
		fmt.Println("--key is required")
		os.Exit(1)
	}

	exp, err := time.Parse(time.RFC3339, *e)
	if err != nil {
		fmt.Println("--exp invalid time")
		os.Exit(1)
	}

	ss, err := admin.GenerateToken(*sub, exp, *s)
	if err != nil {
		os.Exit(1)
	}

	fmt.Println("Token successfully generated:", ss)
}
