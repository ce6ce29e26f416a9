package alert

// Mode режим проверки баланса
type Mode int

const (
	// ModeNormal плановая проверка в выбранное пользователем время
	ModeNormal Mode = iota
	// ModeHourly почасовая проверка низкого баланса
	ModeHourly
)

func (m Mode) String() string {
	if m == ModeHourly {
		return "hourly"
	}
	return "normal"
}

// Decision решение о том, какие сообщения отправить
type Decision int

const (
	Suppress Decision = iota
	Notify
	NotifyAndEscalate
)

func (d Decision) String() string {
	switch d {
	case Suppress:
		return "suppress"
	case NotifyAndEscalate:
		return "notify+escalate"
	default:
		return "notify"
	}
}

// Decide определяет реакцию на показание баланса.
// В обычном режиме уведомление отправляется всегда, а при balance <= threshold
// добавляется предупреждение. В почасовом режиме баланс выше порога не сообщается.
func Decide(balance, threshold float64, mode Mode) Decision {
	low := balance <= threshold
	if mode == ModeHourly {
		if !low {
			return Suppress
		}
		return Notify
	}
	if low {
		return NotifyAndEscalate
	}
	return Notify
}
