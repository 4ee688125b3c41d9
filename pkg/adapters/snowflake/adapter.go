// Package snowflake provides the Snowflake adapter.
package snowflake

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/adapter"
	"github.com/leapstack-labs/leapforge/pkg/auth"
	sfauth "github.com/leapstack-labs/leapforge/pkg/auth/snowflake"
	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/relation"
)

// Adapter implements adapter.TypedAdapter for Snowflake.
type Adapter struct {
	*adapter.SQLAdapter
	cfg adapter.Config
	// Descriptor is the connection descriptor, built on first Open.
	Descriptor *auth.Builder
}

// New creates a Snowflake adapter. It does not connect or read key files.
// If logger is nil, a discard logger is used.
func New(cfg adapter.Config, logger *slog.Logger) *Adapter {
	a := &Adapter{
		SQLAdapter: adapter.NewSQLAdapter(relation.Snowflake, logger),
		cfg:        cfg,
	}
	a.Driver = "snowflake"
	a.Split = adapter.SplitOptions{DollarQuotes: true}
	a.Types[adapter.KindText] = "varchar"
	a.Types[adapter.KindNumber] = "float"
	a.Types[adapter.KindDateTime] = "timestamp_ntz"
	a.Bind(a)
	return a
}

// Open builds the connection descriptor and opens the pool.
func (a *Adapter) Open(ctx context.Context) error {
	if a.DSN == "" {
		if err := a.configure(); err != nil {
			return err
		}
	}
	return a.SQLAdapter.Open(ctx)
}

// NewConnection implements adapter.Core.
func (a *Adapter) NewConnection(ctx context.Context) (adapter.Connection, error) {
	if err := a.Open(ctx); err != nil {
		return nil, err
	}
	return a.SQLAdapter.NewConnection(ctx)
}

func (a *Adapter) configure() error {
	b, err := sfauth.Auth{}.Configure(auth.NewAdapterConfig(RawConfig(a.cfg)))
	if err != nil {
		return err
	}
	dsn, err := BuildDSN(b, a.cfg.Database, a.cfg.Schema)
	if err != nil {
		return err
	}
	a.Descriptor = b
	a.DSN = dsn
	return nil
}

// RawConfig flattens a target back into the profile mapping the connection
// builder reads.
func RawConfig(cfg adapter.Config) map[string]any {
	raw := make(map[string]any, len(cfg.Params)+4)
	for k, v := range cfg.Params {
		raw[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			raw[k] = v
		}
	}
	set("user", cfg.Username)
	set("password", cfg.Password)
	set("database", cfg.Database)
	set("schema", cfg.Schema)
	return raw
}

// dsnParams maps descriptor options to driver DSN parameters. Options not
// listed pass through under their own name.
var dsnParams = map[string]string{
	sfauth.Warehouse:               "warehouse",
	sfauth.Role:                    "role",
	sfauth.ApplicationName:         "application",
	sfauth.LoginTimeout:            "loginTimeout",
	sfauth.AuthType:                "authenticator",
	sfauth.ClientStoreTempCreds:    "clientStoreTemporaryCredential",
	sfauth.ClientCacheMFAToken:     "clientRequestMfaToken",
	sfauth.KeepSessionAlive:        "client_session_keep_alive",
	sfauth.RefreshToken:            "token",
	sfauth.AuthToken:               "token",
	sfauth.JWTPrivateKeyPKCS8Value: "privateKey",
	sfauth.LogTracing:              "tracing",
}

var authenticators = map[string]string{
	sfauth.AuthSnowflake:           "SNOWFLAKE",
	sfauth.AuthOAuth:               "OAUTH",
	sfauth.AuthExternalBrowser:     "EXTERNALBROWSER",
	sfauth.AuthOkta:                "OKTA",
	sfauth.AuthJWT:                 "SNOWFLAKE_JWT",
	sfauth.AuthUsernamePasswordMFA: "USERNAME_PASSWORD_MFA",
}

// BuildDSN renders a descriptor as user:password@account/database/schema?params.
func BuildDSN(b *auth.Builder, database, schema string) (string, error) {
	account, ok := b.Get(sfauth.Account)
	if !ok || account == "" {
		return "", core.ConfigurationError("Snowflake profile requires 'account'")
	}
	if db, ok := b.Get(sfauth.Database); ok {
		database = db
	}

	var sb strings.Builder
	if user, ok := b.Username(); ok {
		sb.WriteString(url.QueryEscape(user))
		if pw, ok := b.Password(); ok {
			sb.WriteByte(':')
			sb.WriteString(url.QueryEscape(pw))
		}
		sb.WriteByte('@')
	}
	sb.WriteString(account)
	if database != "" {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(database))
		if schema != "" {
			sb.WriteByte('/')
			sb.WriteString(url.PathEscape(schema))
		}
	}

	params := url.Values{}
	for _, o := range b.Options() {
		switch o.Name {
		case sfauth.Account, sfauth.Database:
			continue
		}
		name, ok := dsnParams[o.Name]
		if !ok {
			name = o.Name
		}
		value := o.String()
		switch o.Name {
		case sfauth.AuthType:
			if v, ok := authenticators[value]; ok {
				value = v
			}
		case sfauth.LoginTimeout:
			value = strings.TrimSuffix(value, "s")
		}
		params.Set(name, value)
	}
	if len(params) > 0 {
		sb.WriteByte('?')
		sb.WriteString(params.Encode())
	}
	return sb.String(), nil
}

// ValidIncrementalStrategies lists the supported incremental strategies.
func (a *Adapter) ValidIncrementalStrategies() []string {
	return []string{core.StrategyAppend, core.StrategyMerge, core.StrategyDeleteInsert, core.StrategyMicrobatch}
}

// GetConstraintSupport implements adapter.TypedAdapter. Snowflake only
// enforces not null.
func (a *Adapter) GetConstraintSupport(t core.ConstraintType) adapter.ConstraintSupport {
	switch t {
	case core.ConstraintNotNull:
		return adapter.Enforced
	case core.ConstraintUnique, core.ConstraintPrimaryKey, core.ConstraintForeignKey:
		return adapter.NotEnforced
	default:
		return adapter.NotSupported
	}
}

// RenameRelation renames a table or view. Snowflake takes the fully
// qualified target name.
func (a *Adapter) RenameRelation(ctx context.Context, conn adapter.Connection, from, to *relation.Relation) error {
	kind := "table"
	if from.IsView() {
		kind = "view"
	}
	stmt := fmt.Sprintf("alter %s %s rename to %s", kind, from.Render(), to.Render())
	_, _, err := a.Execute(ctx, conn, adapter.Query(stmt), adapter.ExecOptions{})
	return err
}

// DescribeDynamicTable reads the current settings of a dynamic table.
func (a *Adapter) DescribeDynamicTable(ctx context.Context, conn adapter.Connection, rel *relation.Relation) (*DynamicTableConfig, error) {
	stmt := fmt.Sprintf("show dynamic tables like '%s' in schema %s.%s",
		strings.ReplaceAll(rel.Identifier, "'", "''"), rel.Quoted(rel.Database), rel.Quoted(rel.Schema))
	_, table, err := a.Execute(ctx, conn, adapter.Query(stmt), adapter.ExecOptions{Fetch: true})
	if err != nil {
		return nil, err
	}
	return DynamicTableConfigFromDescribe(table)
}

var _ adapter.TypedAdapter = (*Adapter)(nil)
