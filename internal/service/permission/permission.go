package permission

import (
	"sort"
	"strings"

	"github.com/jwalitptl/crm-api/internal/model"
)

// Set is an effective permission set. The universal set holds every permission.
type Set struct {
	all   bool
	perms map[string]struct{}
}

// Wildcard stands for the universal set in configured grant lists and in List output.
const Wildcard = "*"

// Universal is held by superusers and company owners.
func Universal() Set {
	return Set{all: true}
}

// NewSet de-duplicates perms.
func NewSet(perms ...string) Set {
	s := Set{perms: make(map[string]struct{}, len(perms))}
	for _, p := range perms {
		if p = strings.TrimSpace(p); p != "" {
			s.perms[p] = struct{}{}
		}
	}
	return s
}

// ParseGrants reads a configured grant list; a Wildcard entry yields the universal set.
func ParseGrants(grants ...string) Set {
	for _, g := range grants {
		if strings.TrimSpace(g) == Wildcard {
			return Universal()
		}
	}
	return NewSet(grants...)
}

func (s Set) IsUniversal() bool {
	return s.all
}

func (s Set) Has(perm string) bool {
	if s.all {
		return true
	}
	_, ok := s.perms[perm]
	return ok
}

func (s Set) HasAll(perms ...string) bool {
	if s.all {
		return true
	}
	for _, p := range perms {
		if _, ok := s.perms[p]; !ok {
			return false
		}
	}
	return true
}

func (s Set) Len() int {
	return len(s.perms)
}

// List returns the sorted permissions; the universal set lists as ["*"].
func (s Set) List() []string {
	if s.all {
		return []string{Wildcard}
	}
	out := make([]string, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

var actions = []string{model.ActionView, "view_all", model.ActionAdd, model.ActionChange, model.ActionDelete}

var catalogEntities = []model.Entity{
	model.EventEntity,
	model.MessageEntity,
	model.LinkEntity,
	model.VisitEntity,
	model.NotificationEntity,
	model.ColaboratorEntity,
	model.RoleEntity,
	model.InviteEntity,
	model.InvoiceEntity,
	model.PaymentEntity,
}

// Action permissions beyond CRUD.
const (
	SendMessage   = "crm:send_message"
	SendInvite    = "account:send_invite"
	ChangeCompany = "account:change_company"
	PayInvoice    = "billing:pay_invoice"
)

var extra = []model.Permission{
	{Name: SendMessage, Description: "send message"},
	{Name: SendInvite, Description: "send invite"},
	{Name: ChangeCompany, Description: "change company settings"},
	{Name: PayInvoice, Description: "pay invoice"},
}

// Catalog lists every grantable permission.
func Catalog() []model.Permission {
	var out []model.Permission
	for _, e := range catalogEntities {
		for _, a := range actions {
			if a == "view_all" && e.OwnerField == "" {
				continue
			}
			out = append(out, model.Permission{
				Name:        e.Perm(a),
				Description: strings.ReplaceAll(a, "_", " ") + " " + e.Name,
			})
		}
	}
	return append(out, extra...)
}

// Unknown returns the entries of perms missing from the catalog.
func Unknown(perms []string) []string {
	known := map[string]bool{}
	for _, p := range Catalog() {
		known[p.Name] = true
	}
	var out []string
	for _, p := range perms {
		if !known[p] {
			out = append(out, p)
		}
	}
	return out
}
