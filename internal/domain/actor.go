package domain

// ActorKind — категория инициатора операции.
type ActorKind string

const (
	ActorKindCustomer ActorKind = "customer"
	ActorKindAdmin    ActorKind = "admin"
	ActorKindSystem   ActorKind = "system"
	ActorKindGateway  ActorKind = "gateway"
)

// Actor — явная личность инициатора операции. Ядро не читает никакого
// глобального контекста запроса: кто действует, передаётся аргументом.
type Actor struct {
	ID   string
	Kind ActorKind
}

// Valid проверяет, что актор указан.
func (a Actor) Valid() bool {
	return a.ID != "" && a.Kind != ""
}

// String возвращает представление для журналов и аудита.
func (a Actor) String() string {
	if !a.Valid() {
		return "unknown"
	}
	return string(a.Kind) + ":" + a.ID
}

// SystemActor — актор для внутренних операций (воркеры, компенсации).
var SystemActor = Actor{ID: "core", Kind: ActorKindSystem}
