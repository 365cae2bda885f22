// Package docs registra la especificación OpenAPI servida en /swagger/*.
// Regenerar con: swag init -g cmd/api/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/auth/patients/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Registrar paciente",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/patients.registerRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/patients.sessionResponse"}},
                    "400": {"description": "invalid input"},
                    "409": {"description": "email already registered"}
                }
            }
        },
        "/auth/patients/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Login de paciente",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/auth.loginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/patients.sessionResponse"}},
                    "401": {"description": "invalid credentials"}
                }
            }
        },
        "/auth/clinics/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Registrar clínica",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/clinics.registerRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/clinics.sessionResponse"}},
                    "409": {"description": "email already registered"}
                }
            }
        },
        "/auth/clinics/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Login de clínica",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/auth.loginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/clinics.sessionResponse"}},
                    "401": {"description": "invalid credentials"}
                }
            }
        },
        "/access/grants": {
            "get": {
                "tags": ["access"],
                "summary": "Listar grants",
                "description": "Paciente: todos sus grants con estado derivado. Clínica: grants vigentes a su nombre, sin token.",
                "responses": {"200": {"description": "OK"}, "401": {"description": "unauthorized"}}
            },
            "post": {
                "tags": ["access"],
                "summary": "Emitir acceso por QR",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/accessgrants.issueGrantRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/accessgrants.issueGrantResponse"}},
                    "400": {"description": "clinic_id required"},
                    "403": {"description": "forbidden"}
                }
            }
        },
        "/access/grants/{grantID}/revoke": {
            "post": {
                "tags": ["access"],
                "summary": "Revocar acceso",
                "parameters": [{"type": "string", "name": "grantID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/accessgrants.grantResponse"}},
                    "403": {"description": "forbidden"},
                    "404": {"description": "not found"}
                }
            }
        },
        "/access/scan/{token}": {
            "get": {
                "tags": ["access"],
                "summary": "Escanear QR",
                "parameters": [{"type": "string", "name": "token", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "invalid code format"},
                    "403": {"description": "forbidden / wrong clinic"},
                    "404": {"description": "invalid code / not found"},
                    "410": {"description": "expired / revoked"},
                    "429": {"description": "too many requests"}
                }
            }
        },
        "/patients/me": {
            "get": {
                "tags": ["patients"],
                "summary": "Mi historia clínica",
                "responses": {"200": {"description": "OK"}, "401": {"description": "unauthorized"}}
            }
        },
        "/patients/me/symptoms": {
            "get": {
                "tags": ["symptoms"],
                "summary": "Mis síntomas",
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/symptoms.SymptomLogResponse"}}}, "401": {"description": "unauthorized"}, "403": {"description": "forbidden"}}
            },
            "post": {
                "tags": ["symptoms"],
                "summary": "Registrar síntoma",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/symptoms.logSymptomRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/symptoms.SymptomLogResponse"}}, "400": {"description": "invalid input"}, "401": {"description": "unauthorized"}, "403": {"description": "forbidden"}}
            }
        },
        "/patients/{patientID}": {
            "get": {
                "tags": ["patients"],
                "summary": "Ver paciente",
                "parameters": [{"type": "string", "name": "patientID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "forbidden"}, "404": {"description": "patient not found"}}
            }
        },
        "/patients/{patientID}/encounters": {
            "post": {
                "tags": ["encounters"],
                "summary": "Registrar consulta",
                "parameters": [{"type": "string", "name": "patientID", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "invalid input"}, "403": {"description": "forbidden"}}
            }
        },
        "/patients/{patientID}/records/extract": {
            "post": {
                "tags": ["encounters"],
                "summary": "Extraer registro desde texto libre",
                "parameters": [{"type": "string", "name": "patientID", "in": "path", "required": true}],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "patient not synced with EMR"},
                    "422": {"description": "rejected by EMR"},
                    "502": {"description": "EMR error"},
                    "503": {"description": "EMR unavailable"}
                }
            }
        },
        "/clinic/prescriptions/check": {
            "post": {
                "tags": ["clinics"],
                "summary": "Chequear interacciones",
                "responses": {"200": {"description": "OK"}, "400": {"description": "medications required"}, "503": {"description": "EMR unavailable"}}
            }
        },
        "/health": {
            "get": {"tags": ["ops"], "summary": "Healthcheck", "responses": {"200": {"description": "ok"}}}
        }
    },
    "definitions": {
        "symptoms.logSymptomRequest": {
            "type": "object",
            "required": ["symptom"],
            "properties": {
                "symptom": {"type": "string"},
                "severity": {"type": "string", "enum": ["mild", "moderate", "severe"]},
                "notes": {"type": "string"}
            }
        },
        "symptoms.SymptomLogResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "patient_id": {"type": "string"},
                "symptom": {"type": "string"},
                "severity": {"type": "string"},
                "notes": {"type": "string"},
                "logged_at": {"type": "string", "format": "date-time"}
            }
        },
        "auth.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "patients.registerRequest": {
            "type": "object",
            "required": ["name", "email", "password", "dob"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "dob": {"type": "string", "example": "1990-05-01"},
                "gender": {"type": "string", "enum": ["Male", "Female", "Other"]},
                "phone": {"type": "string"},
                "address": {"type": "string"},
                "allergies": {"type": "array", "items": {"type": "string"}}
            }
        },
        "patients.sessionResponse": {
            "type": "object",
            "properties": {"patient": {"type": "object"}, "token": {"type": "string"}, "message": {"type": "string"}}
        },
        "clinics.registerRequest": {
            "type": "object",
            "required": ["name", "email", "password", "hospital"],
            "properties": {
                "name": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "hospital": {"type": "string"}
            }
        },
        "clinics.sessionResponse": {
            "type": "object",
            "properties": {"clinic": {"type": "object"}, "token": {"type": "string"}}
        },
        "accessgrants.issueGrantRequest": {
            "type": "object",
            "required": ["clinic_id"],
            "properties": {"clinic_id": {"type": "string"}}
        },
        "accessgrants.grantResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "patient_id": {"type": "string"},
                "clinic_id": {"type": "string"},
                "token": {"type": "string"},
                "expires_at": {"type": "string"},
                "is_active": {"type": "boolean"},
                "state": {"type": "string", "enum": ["active", "expired", "revoked"]},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "accessgrants.issueGrantResponse": {
            "type": "object",
            "properties": {
                "grant": {"$ref": "#/definitions/accessgrants.grantResponse"},
                "qr_code": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "clinical-access API",
	Description:      "Acceso temporal por QR al historial clínico del paciente, con espejo best-effort en el EMR externo.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
