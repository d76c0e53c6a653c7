package storage

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/g3chat/internal/models"
)

// clearKey typed at a prompt removes the stored key.
const clearKey = "-"

// PromptProviderKeys asks for one API key per provider on out, reading
// answers from scanner. An empty answer keeps the current value, "-" clears
// it.
func PromptProviderKeys(scanner *bufio.Scanner, out io.Writer, current map[models.Provider]string) map[models.Provider]string {
	keys := make(map[models.Provider]string, len(models.Providers))

	for _, p := range models.Providers {
		hint := "not set"
		if cur := current[p]; cur != "" {
			hint = "set, " + mask(cur)
		}
		_, _ = fmt.Fprintf(out, "Enter %s API key [%s] (empty keeps, %q clears): ", p, hint, clearKey)

		answer := ""
		if scanner.Scan() {
			answer = strings.TrimSpace(scanner.Text())
		}
		switch answer {
		case "":
			keys[p] = current[p]
		case clearKey:
			keys[p] = ""
		default:
			keys[p] = answer
		}
	}
	return keys
}

// mask keeps the last four characters of a key.
func mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
