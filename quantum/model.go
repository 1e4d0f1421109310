package quantum

type modelSymbol struct {
	sym     uint16
	cumfreq uint16
}

// model is an adaptive frequency table for the arithmetic decoder. syms has
// one more entry than there are symbols; the last entry has cumfreq 0.
type model struct {
	shiftsLeft int
	entries    int
	syms       []modelSymbol
}

func newModel(start, length int) *model {
	m := &model{
		shiftsLeft: 4,
		entries:    length,
		syms:       make([]modelSymbol, length+1),
	}
	for i := 0; i <= length; i++ {
		m.syms[i] = modelSymbol{sym: uint16(start + i), cumfreq: uint16(length - i)}
	}
	return m
}

// update rescales the model once the total frequency grows too large.
func (m *model) update() {
	m.shiftsLeft--
	if m.shiftsLeft != 0 {
		for i := m.entries - 1; i >= 0; i-- {
			// -1, not -2; the 0 entry saves this
			m.syms[i].cumfreq >>= 1
			if m.syms[i].cumfreq <= m.syms[i+1].cumfreq {
				m.syms[i].cumfreq = m.syms[i+1].cumfreq + 1
			}
		}
		return
	}

	m.shiftsLeft = 50
	for i := 0; i < m.entries; i++ {
		// convert cumfreqs into frequencies
		m.syms[i].cumfreq -= m.syms[i+1].cumfreq
		m.syms[i].cumfreq++
		m.syms[i].cumfreq >>= 1
	}

	// Sort by decreasing frequency. The exchange order for equal
	// frequencies is part of the format, so this must stay a selection sort.
	for i := 0; i < m.entries-1; i++ {
		for j := i + 1; j < m.entries; j++ {
			if m.syms[i].cumfreq < m.syms[j].cumfreq {
				m.syms[i], m.syms[j] = m.syms[j], m.syms[i]
			}
		}
	}

	// convert frequencies back to cumfreqs
	for i := m.entries - 1; i >= 0; i-- {
		m.syms[i].cumfreq += m.syms[i+1].cumfreq
	}
}
