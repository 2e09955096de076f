package engine

import "github.com/DoyleJ11/manor-backend/pkg/types"

type Floor string

const (
	FloorBasement    Floor = "basement"
	FloorGroundFloor Floor = "ground_floor"
	FloorUpperFloor  Floor = "upper_floor"
)

var Floors = []Floor{FloorBasement, FloorGroundFloor, FloorUpperFloor}

// RoomCatalog is the fixed house layout, in catalog order.
var RoomCatalog = []struct {
	Name  string
	Floor Floor
}{
	{"Cave", FloorBasement},
	{"Wine Cellar", FloorBasement},
	{"Boiler Room", FloorBasement},
	{"Storage", FloorBasement},
	{"Kitchen", FloorGroundFloor},
	{"Living Room", FloorGroundFloor},
	{"Dining Room", FloorGroundFloor},
	{"Hallway", FloorGroundFloor},
	{"Master Bedroom", FloorUpperFloor},
	{"Guest Room", FloorUpperFloor},
	{"Bathroom", FloorUpperFloor},
	{"Attic", FloorUpperFloor},
}

var floorLabels = map[Floor]string{
	FloorBasement:    "in the basement",
	FloorGroundFloor: "on the ground floor",
	FloorUpperFloor:  "upstairs",
}

type PowerKey string

const (
	PowerVision    PowerKey = "vision"
	PowerSecousse  PowerKey = "secousse"
	PowerPiege     PowerKey = "piege"
	PowerTraque    PowerKey = "traque"
	PowerBarricade PowerKey = "barricade"
)

type ActionType string

const (
	ActionNone                ActionType = ""
	ActionSelectRooms         ActionType = "select_rooms"
	ActionSelectRoomsPerFloor ActionType = "select_rooms_per_floor"
)

type PowerDefinition struct {
	Key            PowerKey
	Name           string
	Icon           string
	Description    string
	RequiresAction bool
	ActionType     ActionType
	RoomsCount     int
}

// PowerOrder is the catalog order; offers are drawn from it.
var PowerOrder = []PowerKey{PowerVision, PowerSecousse, PowerPiege, PowerTraque, PowerBarricade}

var PowerCatalog = map[PowerKey]PowerDefinition{
	PowerVision: {
		Key:         PowerVision,
		Name:        "👁️ Vision",
		Icon:        "vision.svg",
		Description: "Highlights the rooms the survivors have not searched since the last key was found.",
	},
	PowerSecousse: {
		Key:         PowerSecousse,
		Name:        "↩️ Secousse",
		Icon:        "secousse.svg",
		Description: "If the key is not found after the killers' move, it moves to another room.",
	},
	PowerPiege: {
		Key:            PowerPiege,
		Name:           "🕸️ Piège",
		Icon:           "piege.svg",
		Description:    "Trap up to one room per floor. The next survivor entering it cannot move next turn.",
		RequiresAction: true,
		ActionType:     ActionSelectRoomsPerFloor,
	},
	PowerTraque: {
		Key:         PowerTraque,
		Name:        "🔊 Traque",
		Icon:        "traque.svg",
		Description: "Tells the killers on which floors survivors are moving this turn.",
	},
	PowerBarricade: {
		Key:            PowerBarricade,
		Name:           "🔒 Barricade",
		Icon:           "barricade.svg",
		Description:    "Lock two rooms of your choice.",
		RequiresAction: true,
		ActionType:     ActionSelectRooms,
		RoomsCount:     2,
	},
}

// PowerCatalogView renders the catalog for GET /powers.
func PowerCatalogView() map[string]types.PowerDefinition {
	out := make(map[string]types.PowerDefinition, len(PowerCatalog))
	for key, def := range PowerCatalog {
		out[string(key)] = types.PowerDefinition{
			Name:           def.Name,
			Icon:           def.Icon,
			Description:    def.Description,
			RequiresAction: def.RequiresAction,
			ActionType:     string(def.ActionType),
			RoomsCount:     def.RoomsCount,
		}
	}
	return out
}

func newRooms() map[string]*Room {
	rooms := make(map[string]*Room, len(RoomCatalog))
	for _, rc := range RoomCatalog {
		rooms[rc.Name] = &Room{Name: rc.Name, Floor: rc.Floor, EliminatedPlayers: []string{}}
	}
	return rooms
}
