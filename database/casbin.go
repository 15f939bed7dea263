package database

import (
	"fmt"
	"os"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const rbacModelPath = "config/restful_rbac_model.conf"

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Casbin builds the RBAC enforcer backed by the application database.
// The model file is optional; the embedded model is used when it is absent.
func Casbin(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize casbin adapter: %w", err)
	}

	text := rbacModel
	if b, err := os.ReadFile(rbacModelPath); err == nil {
		text = string(b)
	}
	m, err := casbinmodel.NewModelFromString(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, err
	}

	// Default admin policy
	if hasPolicy, _ := e.HasPolicy("admin", "/api/admin*", "(GET)|(POST)"); !hasPolicy {
		if _, err := e.AddPolicy("admin", "/api/admin*", "(GET)|(POST)"); err != nil {
			return nil, err
		}
	}

	return e, nil
}
