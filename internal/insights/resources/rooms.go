package resources

import "github.com/weni-ai/insights/internal/querygen"

var (
	queueJoin      = querygen.Join{Alias: "q", Clause: "JOIN queues_queue AS q ON q.uuid = r.queue_id"}
	sectorJoin     = querygen.Join{Alias: "s", Clause: "JOIN sectors_sector AS s ON s.uuid = q.sector_id"}
	roomTagsJoin   = querygen.Join{Alias: "rt", Clause: "JOIN rooms_room_tags AS rt ON rt.room_id = r.uuid"}
	contactJoin    = querygen.Join{Alias: "c", Clause: "LEFT JOIN contacts_contact AS c ON c.uuid = r.contact_id"}
	projectJoinSeq = []querygen.Join{queueJoin, sectorJoin}
)

// Rooms are chat rooms on the chats read replica. Project ownership is reached through queue then sector.
func Rooms() Resource {
	return Resource{
		Name:    "rooms",
		Backend: BackendSQL,
		Table:   querygen.PostgresTable{Name: "rooms_room", Alias: "r", PrimaryKey: "uuid"},
		Fields: querygen.MapFilterSet{
			ProjectFilter:  {SourceField: "project_id", TableAlias: "s", JoinClause: projectJoinSeq},
			"sector":       {SourceField: "sector_id", TableAlias: "q", JoinClause: []querygen.Join{queueJoin}},
			"queue":        {SourceField: "queue_id", TableAlias: "r"},
			"created_on":   {SourceField: "created_on", TableAlias: "r"},
			"ended_at":     {SourceField: "ended_at", TableAlias: "r"},
			"is_active":    {SourceField: "is_active", TableAlias: "r"},
			"agent":        {SourceField: "user_id", TableAlias: "r"},
			"contact":      {SourceField: "contact_id", TableAlias: "r"},
			"contact_name": {SourceField: "name", TableAlias: "c", JoinClause: []querygen.Join{contactJoin}},
			"tag":          {SourceField: "sectortag_id", TableAlias: "rt", JoinClause: []querygen.Join{roomTagsJoin}},
			"protocol":     {SourceField: "protocol", TableAlias: "r"},
		},
	}
}
