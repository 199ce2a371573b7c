package mqtt

import "strings"

// Topics builds the sqlgw topic hierarchy under a configurable prefix:
//
//	<prefix>/status            gateway online/offline (retained, LWT)
//	<prefix>/changes/<table>   committed row changes for one table
type Topics struct {
	Prefix string
}

// Status returns the gateway status topic.
//
// Example: sqlgw/status
func (t Topics) Status() string {
	return t.join("status")
}

// Changes returns the change feed topic for table. MQTT wildcard and level
// separator characters in the table name are replaced with '_'.
//
// Example: sqlgw/changes/devices
func (t Topics) Changes(table string) string {
	return t.join("changes", sanitizeLevel(table))
}

func (t Topics) join(levels ...string) string {
	prefix := strings.TrimSuffix(t.Prefix, "/")
	if prefix == "" {
		return strings.Join(levels, "/")
	}
	return prefix + "/" + strings.Join(levels, "/")
}

var levelReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// sanitizeLevel makes s usable as a single topic level.
func sanitizeLevel(s string) string {
	if s == "" {
		return "_"
	}
	return levelReplacer.Replace(s)
}

// ValidPublishTopic reports whether topic may be published to: it must be
// non-empty and contain no wildcards.
func ValidPublishTopic(topic string) bool {
	return topic != "" && !strings.ContainsAny(topic, "+#")
}
