package mission

// Payload is one payload of a mission with the catalog (NORAD) IDs the
// mission provider lists for it, in provider order.
type Payload struct {
	ID         string
	CatalogIDs []int64
}

// PayloadMap maps payload IDs to catalog IDs and remembers the order in
// which payloads were first seen.
type PayloadMap struct {
	order []string
	ids   map[string][]int64
}

// NewPayloadMap returns an empty PayloadMap.
func NewPayloadMap() *PayloadMap {
	return &PayloadMap{ids: make(map[string][]int64)}
}

// Set stores catalogIDs for payloadID. Setting an existing payload
// replaces its catalog IDs but keeps its original position.
func (m *PayloadMap) Set(payloadID string, catalogIDs []int64) {
	if _, ok := m.ids[payloadID]; !ok {
		m.order = append(m.order, payloadID)
	}
	m.ids[payloadID] = catalogIDs
}

// Get returns the catalog IDs for payloadID.
func (m *PayloadMap) Get(payloadID string) ([]int64, bool) {
	ids, ok := m.ids[payloadID]
	return ids, ok
}

// Len returns the number of payloads.
func (m *PayloadMap) Len() int {
	return len(m.order)
}

// Payloads returns the payloads in insertion order.
func (m *PayloadMap) Payloads() []Payload {
	out := make([]Payload, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, Payload{ID: id, CatalogIDs: m.ids[id]})
	}
	return out
}

// Launch records as returned by the mission provider with the
// rocket/second_stage/payloads/(payload_id,norad_id) projection applied.
// Pointer fields distinguish an absent key from an empty value.
type launchRecord struct {
	Rocket *rocketRecord `json:"rocket"`
}

type rocketRecord struct {
	SecondStage *secondStageRecord `json:"second_stage"`
}

type secondStageRecord struct {
	Payloads *[]payloadRecord `json:"payloads"`
}

type payloadRecord struct {
	PayloadID *string  `json:"payload_id"`
	NoradIDs  *[]int64 `json:"norad_id"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}
