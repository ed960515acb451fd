package app

import (
	"fmt"
	"io"
	"log"
)

// Notifier surfaces a message to the user.
type Notifier interface {
	Notify(message string)
}

// writerNotifier rings the terminal bell and prints the message.
type writerNotifier struct {
	w   io.Writer
	log *log.Logger
}

func (n writerNotifier) Notify(message string) {
	if _, err := fmt.Fprintf(n.w, "\a\r\n%s\r\n", message); err != nil && n.log != nil {
		n.log.Printf("notify: %v", err)
	}
}
