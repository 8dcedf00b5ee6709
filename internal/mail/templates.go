package mail

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Render loads an embedded template and replaces every {{key}} with its value.
// Unknown placeholders are left untouched.
func Render(name string, values map[string]string) (string, error) {
	raw, err := templatesFS.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("mail: template %s: %w", name, err)
	}
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(string(raw)), nil
}
