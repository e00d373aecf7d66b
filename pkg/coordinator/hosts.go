package coordinator

import (
	"strings"

	"github.com/syldej/gluster-block/pkg/gberrors"
)

// ParseHosts splits a comma-delimited block-hosts argument into candidate
// addresses, trimming surrounding whitespace around each entry. An empty
// entry (two commas back to back, or a leading/trailing comma) is a
// malformed argument and is rejected rather than silently skipped.
func ParseHosts(raw string) ([]string, error) {
	fields := strings.Split(raw, ",")
	hosts := make([]string, 0, len(fields))
	for _, f := range fields {
		h := strings.TrimSpace(f)
		if h == "" {
			return nil, &gberrors.ErrEmptyHost{Raw: raw}
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}
