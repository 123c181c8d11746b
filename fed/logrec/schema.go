package logrec

// Schema selects one of the four column layouts.
type Schema struct {
	EnvSensor bool
	Bandit    bool
}

// banditSessions are the probabilistic session types.
var banditSessions = map[string]bool{
	"Bandit":    true,
	"Bandit80":  true,
	"Bandit100": true,
}

// IsBandit reports whether sessionType is a probabilistic variant.
func IsBandit(sessionType string) bool {
	return banditSessions[sessionType]
}

// SchemaFor picks the layout for a session.
func SchemaFor(sessionType string, envSensor bool) Schema {
	return Schema{EnvSensor: envSensor, Bandit: IsBandit(sessionType)}
}

// Columns returns the header row. The order is fixed per schema.
func (s Schema) Columns() []string {
	cols := []string{"MM:DD:YYYY hh:mm:ss:ms"}
	if s.EnvSensor {
		cols = append(cols, "Temp", "Humidity")
	}
	cols = append(cols, "Library_Version", "Session_type", "Device_Number", "Battery_Voltage",
		"Left_Motor_Turns", "Right_Motor_Turns")
	if s.Bandit {
		cols = append(cols, "PelletsToSwitch", "Prob_left", "Prob_right", "Event", "High_prob_poke")
	} else {
		cols = append(cols, "FR", "Event", "Active_Poke")
	}
	return append(cols, "Left_Poke_Count", "Right_Poke_Count", "Left_Lick_Count", "Right_Lick_Count",
		"Left_Deliver_Count", "Right_Deliver_Count", "Block_Pellet_Count", "Retrieval_Time",
		"InterPelletInterval", "Poke_Time")
}
