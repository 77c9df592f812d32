package engine

import (
	"strconv"
	"strings"

	"github.com/koivu/rolewarden/internal/directory"
)

// RenderTemplate interpolates the DM placeholders: {name} is the member's
// display name, {server} the server name, {days} the threshold day count, and
// {role} the role the mutation acted on. Unknown placeholders pass through.
func RenderTemplate(tmpl string, member directory.Member, server directory.Server, days int, role directory.Role) string {
	r := strings.NewReplacer(
		"{name}", member.DisplayName,
		"{server}", server.Name,
		"{days}", strconv.Itoa(days),
		"{role}", role.Name,
	)
	return r.Replace(tmpl)
}
