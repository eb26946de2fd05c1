package simulator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/swaplabs/sagashop/internal/domain"
)

// Simulator детерминированно или случайно решает исход шага саги по
// behaviour-флагу заказа. Один и тот же механизм обслуживает и платёж, и
// резервирование. Источник случайности инжектируется, чтобы тесты были
// воспроизводимы.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New создаёт симулятор со случайным seed.
func New() *Simulator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed создаёт симулятор с фиксированным seed (для тестов).
func NewWithSeed(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// Decide возвращает true, если шаг должен пройти. Пустой behaviour
// трактуется как success.
func (s *Simulator) Decide(behaviour domain.Behaviour) bool {
	switch behaviour {
	case domain.BehaviourFailure:
		return false
	case domain.BehaviourRandom:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.rng.Intn(2) == 0
	default:
		return true
	}
}
