package outbox

// shiftEventSchema covers both lifecycle payloads published to the
// shift_events topic.
const shiftEventSchema = `{
  "title": "ShiftEvent",
  "oneOf": [
    {
      "type": "object",
      "title": "ShiftClockedIn",
      "properties": {
        "shift_id": {"type": "string"},
        "organization_id": {"type": "string"},
        "worker_id": {"type": "string"},
        "clock_in_at": {"type": "string", "format": "date-time"},
        "latitude": {"type": "number"},
        "longitude": {"type": "number"},
        "note": {"type": "string"}
      },
      "required": ["shift_id", "organization_id", "worker_id", "clock_in_at", "latitude", "longitude"],
      "additionalProperties": false
    },
    {
      "type": "object",
      "title": "ShiftClockedOut",
      "properties": {
        "shift_id": {"type": "string"},
        "organization_id": {"type": "string"},
        "worker_id": {"type": "string"},
        "clock_out_at": {"type": "string", "format": "date-time"},
        "latitude": {"type": "number"},
        "longitude": {"type": "number"},
        "duration_minutes": {"type": "integer"},
        "note": {"type": "string"}
      },
      "required": ["shift_id", "organization_id", "worker_id", "clock_out_at", "latitude", "longitude", "duration_minutes"],
      "additionalProperties": false
    }
  ]
}`

const shiftStateChangedSchema = `{
  "type": "object",
  "title": "ShiftStateChanged",
  "properties": {
    "shift_id": {"type": "string"},
    "organization_id": {"type": "string"},
    "worker_id": {"type": "string"},
    "state": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "reason": {"type": "string"}
  },
  "required": ["shift_id", "organization_id", "worker_id", "state", "occurred_at"],
  "additionalProperties": false
}`
