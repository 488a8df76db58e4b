package protocol

// HANDSHAKE (client -> server)
type HandshakeMsg struct {
	Type               string `json:"type"`
	ProtocolVersion    string `json:"protocol_version"`
	ClientToken        string `json:"client_token"`
	Username           string `json:"username,omitempty"`
	Password           string `json:"password,omitempty"`
	LastAckedMessageID int64  `json:"last_acked_message_id"`
	IsResumption       bool   `json:"is_resumption"`
	Observer           bool   `json:"observer,omitempty"`
	Compression        string `json:"compression,omitempty"`
}

// HANDSHAKE_ACK (server -> client)
type HandshakeAckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Result          string `json:"result"`
	RoundID         int64  `json:"round_id"`
	TransportID     string `json:"transport_id,omitempty"`
	Message         string `json:"message,omitempty"`
}

// ACTION (client -> server)
type ActionMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	MessageID       int64      `json:"message_id"`
	Action          ActionBody `json:"action"`
}

type ActionBody struct {
	Kind     string  `json:"kind"`
	Dest     *[2]int `json:"dest,omitempty"`
	TargetID int64   `json:"target_id,omitempty"`
	ObjectID int64   `json:"object_id,omitempty"`
}

// ACTION_RESULT (server -> client)
type ActionResultMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	MessageID       int64       `json:"message_id"`
	Outcome         OutcomeBody `json:"outcome"`
}

type OutcomeBody struct {
	Kind       string      `json:"kind"`
	Performed  bool        `json:"performed"`
	FailReason string      `json:"fail_reason,omitempty"`
	Position   [2]int      `json:"position"`
	Damage     int         `json:"damage,omitempty"`
	Hit        bool        `json:"hit,omitempty"`
	TargetID   int64       `json:"target_id,omitempty"`
	ObjectID   int64       `json:"object_id,omitempty"`
	Effect     *EffectBody `json:"effect,omitempty"`
}

type EffectBody struct {
	Kind           string `json:"kind"`
	Magnitude      int    `json:"magnitude"`
	RemainingTurns int    `json:"remaining_turns"`
}

// VIEW_FRAME (server -> client)
type ViewFrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RoundID         int64  `json:"round_id"`
	Tick            uint64 `json:"tick"`
	Seq             uint64 `json:"seq"`
	Full            bool   `json:"full"`
	Viewport        Rect   `json:"viewport"`
	World           Size   `json:"world"`
	RoundSecsLeft   int    `json:"round_secs_left"`

	Self      *SelfView      `json:"self,omitempty"`
	Regions   []Region       `json:"regions"`
	Creatures []CreatureView `json:"creatures"`
	Objects   []ObjectDef    `json:"objects"`
	Ground    []GroundItem   `json:"ground"`
	Events    []EventView    `json:"events"`
}

type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type Size struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Region covers a rectangle in map coordinates. Passable is a bitmap and Layers holds one
// run-length encoded plane per layer depth, both in row-major order.
type Region struct {
	X        int      `json:"x"`
	Y        int      `json:"y"`
	W        int      `json:"w"`
	H        int      `json:"h"`
	Passable string   `json:"passable"`
	Layers   []string `json:"layers"`
}

type SelfView struct {
	CreatureID int64           `json:"creature_id"`
	Observer   bool            `json:"observer,omitempty"`
	Score      int64           `json:"score"`
	HP         int             `json:"hp"`
	MaxHP      int             `json:"max_hp"`
	Dead       bool            `json:"dead,omitempty"`
	Weapon     int64           `json:"weapon,omitempty"`
	Armour     []int64         `json:"armour,omitempty"`
	Inventory  []InventoryItem `json:"inventory,omitempty"`
	Effects    []EffectBody    `json:"effects,omitempty"`
}

type InventoryItem struct {
	ID       int64 `json:"id"`
	ObjectID int64 `json:"object_id"`
}

type CreatureView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Player   bool    `json:"player,omitempty"`
	TileType uint16  `json:"tile_type"`
	Pos      [2]int  `json:"pos"`
	HP       int     `json:"hp"`
	MaxHP    int     `json:"max_hp"`
	Level    int     `json:"level"`
	Weapon   int64   `json:"weapon,omitempty"`
	Armour   []int64 `json:"armour,omitempty"`
}

type ObjectDef struct {
	ID             int64       `json:"id"`
	Kind           string      `json:"kind"`
	Name           string      `json:"name"`
	TileType       uint16      `json:"tile_type"`
	AttackDice     int         `json:"attack_dice,omitempty"`
	AttackDiceSize int         `json:"attack_dice_size,omitempty"`
	AttackPlus     int         `json:"attack_plus,omitempty"`
	HitRating      int         `json:"hit_rating,omitempty"`
	Slot           string      `json:"slot,omitempty"`
	Defense        int         `json:"defense,omitempty"`
	Effect         *EffectBody `json:"effect,omitempty"`
}

type GroundItem struct {
	ID       int64  `json:"id"`
	ObjectID int64  `json:"object_id"`
	Pos      [2]int `json:"pos"`
}

type EventView struct {
	ID         int64  `json:"id"`
	Tick       uint64 `json:"tick"`
	Kind       string `json:"kind"`
	Pos        [2]int `json:"pos"`
	CreatureID int64  `json:"creature_id,omitempty"`
	TargetID   int64  `json:"target_id,omitempty"`
	ObjectID   int64  `json:"object_id,omitempty"`
	From       [2]int `json:"from"`
	To         [2]int `json:"to"`
	Hit        bool   `json:"hit,omitempty"`
	Damage     int    `json:"damage,omitempty"`
	Drop       bool   `json:"drop,omitempty"`
}

// ROUND_COMPLETE (server -> client)
type RoundCompleteMsg struct {
	Type               string `json:"type"`
	ProtocolVersion    string `json:"protocol_version"`
	RoundID            int64  `json:"round_id"`
	NextRoundInSeconds int    `json:"next_round_in_seconds"`
}

// HEALTH_PROBE (server -> client) and HEALTH_PROBE_ACK (client -> server)
type HealthProbeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              int64  `json:"id"`
}

type HealthProbeAckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              int64  `json:"id"`
}
