package bigquery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/config"
)

// temporaryExpirationHours is how long temporary tables live.
const temporaryExpirationHours = 12

// GetTableOptions renders the OPTIONS() entries of a create table
// statement. Values are SQL literals.
func (a *Adapter) GetTableOptions(cfg *config.ModelConfig, temporary bool) (map[string]string, error) {
	opts, err := a.commonOptions(cfg, temporary)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return opts, nil
	}
	if cfg.KMSKeyName != nil {
		opts["kms_key_name"] = singleQuoted(*cfg.KMSKeyName)
	}
	if temporary {
		return opts, nil
	}
	if cfg.RequirePartitionFilter != nil && *cfg.RequirePartitionFilter {
		opts["require_partition_filter"] = "true"
	}
	if cfg.PartitionExpirationDays != nil {
		opts["partition_expiration_days"] = fmt.Sprint(*cfg.PartitionExpirationDays)
	}
	return opts, nil
}

// GetViewOptions renders the OPTIONS() entries of a create view statement.
func (a *Adapter) GetViewOptions(cfg *config.ModelConfig) (map[string]string, error) {
	return a.commonOptions(cfg, false)
}

func (a *Adapter) commonOptions(cfg *config.ModelConfig, temporary bool) (map[string]string, error) {
	opts := make(map[string]string)
	if temporary {
		opts["expiration_timestamp"] = expiration(temporaryExpirationHours)
	}
	if cfg == nil {
		return opts, nil
	}
	if !temporary && cfg.HoursToExpiration != nil {
		opts["expiration_timestamp"] = expiration(*cfg.HoursToExpiration)
	}
	if cfg.Description != nil && cfg.PersistDocs != nil && cfg.PersistDocs.Relation != nil && *cfg.PersistDocs.Relation {
		opts["description"] = tripleQuoted(*cfg.Description)
	}

	labels := make(map[string]string, len(cfg.Labels))
	if cfg.LabelsFromMeta != nil && *cfg.LabelsFromMeta {
		for k, v := range cfg.Meta {
			labels[k] = fmt.Sprint(v)
		}
	}
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	if len(labels) > 0 {
		opts["labels"] = renderLabels(labels)
	}
	return opts, nil
}

func expiration(hours int) string {
	return fmt.Sprintf("TIMESTAMP_ADD(CURRENT_TIMESTAMP(), INTERVAL %d hour)", hours)
}

// renderLabels renders labels as an array of key/value tuples, sorted by key.
func renderLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("(%s, %s)", doubleQuoted(k), doubleQuoted(labels[k]))
	}
	return "[" + strings.Join(pairs, ", ") + "]"
}

func singleQuoted(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func doubleQuoted(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func tripleQuoted(s string) string {
	return `"""` + strings.ReplaceAll(s, `"""`, `\"\"\"`) + `"""`
}
