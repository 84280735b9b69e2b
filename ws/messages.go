package ws

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"crashd/models"
)

// Topic identifies one broadcast stream a client can subscribe to.
type Topic string

const (
	TopicGameState     Topic = "game_state"
	TopicCrashHistory  Topic = "crash_history"
	TopicPlayerStatus  Topic = "player_status"
	TopicBalanceUpdate Topic = "balance_update"
)

func validTopic(t Topic) bool {
	switch t {
	case TopicGameState, TopicCrashHistory, TopicPlayerStatus, TopicBalanceUpdate:
		return true
	}
	return false
}

// Wire messages form a closed set. Every frame carries a type tag and a
// version so clients can dispatch without sniffing fields and old
// clients can refuse frames they do not understand. Keys are compact:
// these frames go out on every tick to every observer.

const wireVersion = 1

// clientFrame is what clients send: subscribe and unsubscribe requests.
type clientFrame struct {
	Type  string `json:"t"`
	Topic Topic  `json:"top"`
}

type gameStateMsg struct {
	Type      string `json:"t"`
	V         int    `json:"v"`
	RoundID   int64  `json:"rid"`
	Status    string `json:"st"`
	Coef      string `json:"c"`
	Countdown int    `json:"cd"`
	Crashed   bool   `json:"x"`
	LastCrash string `json:"lc"`
}

type crashHistoryMsg struct {
	Type   string   `json:"t"`
	V      int      `json:"v"`
	Coeffs []string `json:"h"`
}

type playerStatusMsg struct {
	Type        string `json:"t"`
	V           int    `json:"v"`
	UserID      int64  `json:"uid"`
	InRound     bool   `json:"in"`
	BetAmount   string `json:"amt"`
	CashedOut   bool   `json:"co"`
	CashoutCoef string `json:"cc"`
	WinAmount   string `json:"win"`
	Lost        bool   `json:"lo"`
}

type balanceUpdateMsg struct {
	Type    string `json:"t"`
	V       int    `json:"v"`
	UserID  int64  `json:"uid"`
	Balance string `json:"bal"`
	Change  string `json:"chg"`
	Kind    string `json:"k"`
}

type ackMsg struct {
	Type  string `json:"t"`
	V     int    `json:"v"`
	Topic Topic  `json:"top"`
}

type errorMsg struct {
	Type string `json:"t"`
	V    int    `json:"v"`
	Msg  string `json:"msg"`
}

func encodeGameState(snap models.RoundSnapshot) []byte {
	b, _ := json.Marshal(gameStateMsg{
		Type:      "gs",
		V:         wireVersion,
		RoundID:   snap.RoundID,
		Status:    string(snap.Status),
		Coef:      snap.Coefficient.StringFixed(2),
		Countdown: snap.Countdown,
		Crashed:   snap.Crashed,
		LastCrash: snap.LastCrashCoef.StringFixed(2),
	})
	return b
}

func encodeCrashHistory(coeffs []decimal.Decimal) []byte {
	out := make([]string, len(coeffs))
	for i, c := range coeffs {
		out[i] = c.StringFixed(2)
	}
	b, _ := json.Marshal(crashHistoryMsg{Type: "ch", V: wireVersion, Coeffs: out})
	return b
}

func encodePlayerStatus(st models.PlayerStatus) []byte {
	b, _ := json.Marshal(playerStatusMsg{
		Type:        "ps",
		V:           wireVersion,
		UserID:      st.UserID,
		InRound:     st.InRound,
		BetAmount:   st.BetAmount.StringFixed(2),
		CashedOut:   st.CashedOut,
		CashoutCoef: st.CashoutCoef.StringFixed(2),
		WinAmount:   st.WinAmount.StringFixed(2),
		Lost:        st.Lost,
	})
	return b
}

func encodeBalanceUpdate(userID int64, balance, change decimal.Decimal, kind string) []byte {
	b, _ := json.Marshal(balanceUpdateMsg{
		Type:    "bu",
		V:       wireVersion,
		UserID:  userID,
		Balance: balance.StringFixed(2),
		Change:  change.StringFixed(2),
		Kind:    kind,
	})
	return b
}

func encodeAck(topic Topic) []byte {
	b, _ := json.Marshal(ackMsg{Type: "ack", V: wireVersion, Topic: topic})
	return b
}

func encodeError(msg string) []byte {
	b, _ := json.Marshal(errorMsg{Type: "err", V: wireVersion, Msg: msg})
	return b
}
