package memory

import (
	"github.com/google/uuid"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

// store holds all state behind the memory backend. Transactions clone the
// whole store and swap the clone in on commit, so a failed transaction leaves
// no trace.
type store struct {
	tenants       map[string]*ledgerdb.Tenant
	users         map[uuid.UUID]*ledgerdb.User
	usersByEmail  map[string]uuid.UUID
	userRoles     map[uuid.UUID][]string
	rolePerms     map[string][]string
	policies      map[string]*ledgerdb.Policy
	accounts      map[string]*ledgerdb.AccountConfig
	intents       map[uuid.UUID]*ledgerdb.PaymentIntent
	entries       []*ledgerdb.LedgerEntry
	refunds       map[uuid.UUID]*ledgerdb.Refund
	outbox        map[uuid.UUID]*ledgerdb.OutboxEvent
	endpoints     map[uuid.UUID]*ledgerdb.WebhookEndpoint
	deliveries    map[uuid.UUID]*ledgerdb.WebhookDelivery
	discrepancies map[uuid.UUID]*ledgerdb.Discrepancy
}

func newStore() *store {
	return &store{
		tenants:       make(map[string]*ledgerdb.Tenant),
		users:         make(map[uuid.UUID]*ledgerdb.User),
		usersByEmail:  make(map[string]uuid.UUID),
		userRoles:     make(map[uuid.UUID][]string),
		rolePerms:     make(map[string][]string),
		policies:      make(map[string]*ledgerdb.Policy),
		accounts:      make(map[string]*ledgerdb.AccountConfig),
		intents:       make(map[uuid.UUID]*ledgerdb.PaymentIntent),
		refunds:       make(map[uuid.UUID]*ledgerdb.Refund),
		outbox:        make(map[uuid.UUID]*ledgerdb.OutboxEvent),
		endpoints:     make(map[uuid.UUID]*ledgerdb.WebhookEndpoint),
		deliveries:    make(map[uuid.UUID]*ledgerdb.WebhookDelivery),
		discrepancies: make(map[uuid.UUID]*ledgerdb.Discrepancy),
	}
}

func (s *store) clone() *store {
	c := newStore()
	for k, v := range s.tenants {
		t := *v
		c.tenants[k] = &t
	}
	for k, v := range s.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range s.usersByEmail {
		c.usersByEmail[k] = v
	}
	for k, v := range s.userRoles {
		c.userRoles[k] = append([]string(nil), v...)
	}
	for k, v := range s.rolePerms {
		c.rolePerms[k] = append([]string(nil), v...)
	}
	for k, v := range s.policies {
		p := *v
		p.AllowedPlans = append([]string(nil), v.AllowedPlans...)
		p.AllowedRegions = append([]string(nil), v.AllowedRegions...)
		c.policies[k] = &p
	}
	for k, v := range s.accounts {
		a := *v
		c.accounts[k] = &a
	}
	for k, v := range s.intents {
		pi := *v
		c.intents[k] = &pi
	}
	c.entries = make([]*ledgerdb.LedgerEntry, 0, len(s.entries))
	for _, v := range s.entries {
		e := *v
		e.Lines = append([]ledgerdb.LedgerLine(nil), v.Lines...)
		c.entries = append(c.entries, &e)
	}
	for k, v := range s.refunds {
		r := *v
		c.refunds[k] = &r
	}
	for k, v := range s.outbox {
		e := *v
		c.outbox[k] = &e
	}
	for k, v := range s.endpoints {
		e := *v
		e.Events = append([]string(nil), v.Events...)
		c.endpoints[k] = &e
	}
	for k, v := range s.deliveries {
		d := *v
		c.deliveries[k] = &d
	}
	for k, v := range s.discrepancies {
		d := *v
		c.discrepancies[k] = &d
	}
	return c
}

func accountKey(tenantID, code string) string { return tenantID + "|" + code }
