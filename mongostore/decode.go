package mongostore

import (
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/eringen/touradmin/booking"
)

// fromDocument converts a raw booking document. Bookings are written by an
// external flow, so every field is optional and may have an unexpected type;
// those decode to zero values.
func fromDocument(doc bson.M) booking.Booking {
	return booking.Booking{
		ID:              idString(doc["_id"]),
		FullName:        str(doc["fullName"]),
		TourTitle:       str(doc["tourTitle"]),
		WhatsApp:        str(doc["whatsapp"]),
		Email:           str(doc["email"]),
		StartDate:       timeValue(doc["startDate"]),
		NumberOfPersons: intValue(doc["numberOfPersons"]),
		CreatedAt:       timeValue(doc["createdAt"]),
	}
}

// toDocument is the inverse of fromDocument for inserts.
func toDocument(b booking.Booking) bson.M {
	doc := bson.M{
		"fullName":        b.FullName,
		"tourTitle":       b.TourTitle,
		"whatsapp":        b.WhatsApp,
		"email":           b.Email,
		"numberOfPersons": b.NumberOfPersons,
		"createdAt":       bson.NewDateTimeFromTime(b.CreatedAt),
	}
	if !b.StartDate.IsZero() {
		doc["startDate"] = bson.NewDateTimeFromTime(b.StartDate)
	}
	if b.ID != "" {
		if oid, err := bson.ObjectIDFromHex(b.ID); err == nil {
			doc["_id"] = oid
		} else {
			doc["_id"] = b.ID
		}
	}
	return doc
}

func idString(v any) string {
	switch id := v.(type) {
	case bson.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int32, int64, float64:
		return fmt.Sprint(s)
	default:
		return ""
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

func timeValue(v any) time.Time {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time()
	case time.Time:
		return t
	case bson.Timestamp:
		return time.Unix(int64(t.T), 0)
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

// idFilter matches a booking id that may be an ObjectID hex or a plain
// string _id.
func idFilter(id string) bson.M {
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

func queryFilter(q booking.Query) bson.M {
	if !q.Filtered() {
		return bson.M{}
	}
	return bson.M{"createdAt": bson.M{"$gte": bson.NewDateTimeFromTime(q.CreatedFrom)}}
}
