package authz

// Decision describes one evaluated check, handed to an Observer.
type Decision struct {
	Resource ResourceType
	Ability  string
	Allowed  bool
}

// Observer receives every Can decision. Used for metrics.
type Observer interface {
	ObserveDecision(Decision)
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy registers or replaces the policy for a resource type.
func WithPolicy(rt ResourceType, p Policy) Option {
	return func(e *Engine) {
		if p != nil {
			e.policies[rt] = p
		}
	}
}

// WithObserver attaches a decision observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// Engine evaluates authorization rules. It holds no mutable state after
// construction and is safe for concurrent use.
type Engine struct {
	policies map[ResourceType]Policy
	observer Observer
}

// NewEngine builds an Engine with the user policy registered.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{policies: map[ResourceType]Policy{
		ResourceUser: UserPolicy{},
	}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Can reports whether actor may perform ability on a resource of the given
// type. Unknown resource types and abilities are denied.
func (e *Engine) Can(actor *Actor, ability string, resourceType string, resource *Resource) bool {
	parsed, ok := ParseAbility(ability)
	if !ok {
		e.observe(ResourceType(resourceType), ability, false)
		return false
	}
	return e.CanAbility(actor, parsed, ResourceType(resourceType), resource)
}

// CanAbility is the typed form of Can.
func (e *Engine) CanAbility(actor *Actor, ability Ability, rt ResourceType, resource *Resource) bool {
	allowed := e.evaluate(actor, ability, rt, resource)
	e.observe(rt, ability.String(), allowed)
	return allowed
}

func (e *Engine) evaluate(actor *Actor, ability Ability, rt ResourceType, resource *Resource) bool {
	if e == nil {
		return false
	}
	policy, ok := e.policies[rt]
	if !ok {
		return false
	}
	switch ability {
	case AbilityView:
		return policy.View(actor, resource)
	case AbilityCreate:
		return policy.Create(actor)
	case AbilityUpdate:
		return policy.Update(actor, resource)
	case AbilityDelete:
		return policy.Delete(actor, resource)
	default:
		return false
	}
}

func (e *Engine) observe(rt ResourceType, ability string, allowed bool) {
	if e == nil || e.observer == nil {
		return
	}
	e.observer.ObserveDecision(Decision{Resource: rt, Ability: ability, Allowed: allowed})
}

// HasPermission reports whether the actor's role grants p.
func (e *Engine) HasPermission(actor *Actor, p Permission) bool {
	if actor == nil {
		return false
	}
	return PermissionsFor(actor.Role).Has(p)
}

// CanAssignRole reports whether actor may give target to a user. Only admins
// may hand out the admin role.
func (e *Engine) CanAssignRole(actor *Actor, target Role) bool {
	if actor == nil {
		return false
	}
	if target == RoleAdmin {
		return actor.Role == RoleAdmin
	}
	for _, r := range AssignableRolesFor(actor.Role) {
		if r == target {
			return true
		}
	}
	return false
}

// AssignableRoles lists the roles actor may assign.
func (e *Engine) AssignableRoles(actor *Actor) []Role {
	if actor == nil {
		return []Role{}
	}
	return AssignableRolesFor(actor.Role)
}

// AssignableRolesFor returns every role for admins and nothing for anyone
// else. There is no partial delegation.
func AssignableRolesFor(role Role) []Role {
	if role == RoleAdmin {
		return AllRoles()
	}
	return []Role{}
}
