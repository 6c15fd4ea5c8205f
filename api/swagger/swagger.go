package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Bultti Inspections API",
        "description": "Inspection lifecycle and approval workflow for transit operator documents",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Inspections", "description": "Inspection documents and versions"},
        {"name": "Lifecycle", "description": "State transitions and approvals"},
        {"name": "Linkage", "description": "Post inspection evidence links"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A backing store is unavailable"}
                }
            }
        },
        "/inspections": {
            "get": {
                "tags": ["Inspections"],
                "summary": "List inspections",
                "parameters": [
                    {"name": "operatorId", "in": "query", "type": "integer"},
                    {"name": "seasonId", "in": "query", "type": "string"},
                    {"name": "documentType", "in": "query", "type": "string", "enum": ["PRE", "POST"]},
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Inspections"],
                "summary": "Open a new draft inspection",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateInspectionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Version conflict"}
                }
            }
        },
        "/inspections/in-effect": {
            "get": {
                "tags": ["Inspections"],
                "summary": "Resolve the version currently in effect for a key space",
                "parameters": [
                    {"name": "operatorId", "in": "query", "required": true, "type": "integer"},
                    {"name": "seasonId", "in": "query", "required": true, "type": "string"},
                    {"name": "documentType", "in": "query", "required": true, "type": "string", "enum": ["PRE", "POST"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/inspections/{id}": {
            "get": {
                "tags": ["Inspections"],
                "summary": "Get inspection detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "patch": {
                "tags": ["Inspections"],
                "summary": "Edit inspection fields",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateInspectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Inspections"],
                "summary": "Delete an inspection and its dependent records",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Referenced by other records"}
                }
            }
        },
        "/inspections/{id}/submit": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Submit an inspection for review",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitInspectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Blocking validation errors or invalid transition"}
                }
            }
        },
        "/inspections/{id}/sanctionable": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Move a draft post inspection to sanctionable",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/inspections/{id}/abandon-sanctions": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Return a sanctionable post inspection to draft",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/inspections/{id}/accept": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Record one party's acceptance of a post inspection",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AcceptInspectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/inspections/{id}/publish": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Publish an in-review inspection to production",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Acceptances missing or concurrent modification"}
                }
            }
        },
        "/inspections/{id}/reject": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Reject an in-review inspection back to draft",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/inspections/{id}/linked-inspections": {
            "put": {
                "tags": ["Linkage"],
                "summary": "Refresh a post inspection's linked pre inspections",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/inspections/{id}/events": {
            "get": {
                "tags": ["Inspections"],
                "summary": "Stream status and error events for an inspection",
                "produces": ["text/event-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Event stream"}
                }
            }
        }
    },
    "definitions": {
        "Inspection": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "documentType": {"type": "string", "enum": ["PRE", "POST"]},
                "status": {"type": "string", "enum": ["DRAFT", "SANCTIONABLE", "IN_REVIEW", "IN_PRODUCTION"]},
                "operatorId": {"type": "integer"},
                "seasonId": {"type": "string"},
                "version": {"type": "integer"},
                "name": {"type": "string"},
                "minStartDate": {"type": "string"},
                "startDate": {"type": "string"},
                "endDate": {"type": "string"},
                "inspectionStartDate": {"type": "string"},
                "inspectionEndDate": {"type": "string"},
                "hslAccepted": {"type": "boolean"},
                "operatorAccepted": {"type": "boolean"},
                "linkedInspectionUpdateAvailable": {"type": "boolean"},
                "validationErrors": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ValidationError"}
                },
                "linkedInspections": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/LinkedInspection"}
                },
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "ValidationError": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "inspectionId": {"type": "string"},
                "type": {"type": "string"},
                "objectId": {"type": "string"},
                "keys": {"type": "array", "items": {"type": "string"}},
                "referenceKeys": {"type": "array", "items": {"type": "string"}}
            }
        },
        "LinkedInspection": {
            "type": "object",
            "properties": {
                "inspectionId": {"type": "string"},
                "linkedId": {"type": "string"},
                "linkedVersion": {"type": "integer"},
                "snapshotAt": {"type": "string"}
            }
        },
        "CreateInspectionRequest": {
            "type": "object",
            "properties": {
                "operatorId": {"type": "integer"},
                "seasonId": {"type": "string"},
                "documentType": {"type": "string", "enum": ["PRE", "POST"]},
                "name": {"type": "string"},
                "inspectionStartDate": {"type": "string"},
                "inspectionEndDate": {"type": "string"}
            },
            "required": ["operatorId", "seasonId", "documentType"]
        },
        "UpdateInspectionRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "minStartDate": {"type": "string"},
                "startDate": {"type": "string"},
                "endDate": {"type": "string"},
                "inspectionStartDate": {"type": "string"},
                "inspectionEndDate": {"type": "string"}
            }
        },
        "SubmitInspectionRequest": {
            "type": "object",
            "properties": {
                "startDate": {"type": "string"},
                "endDate": {"type": "string"}
            },
            "required": ["startDate", "endDate"]
        },
        "AcceptInspectionRequest": {
            "type": "object",
            "properties": {
                "party": {"type": "string", "enum": ["hsl", "operator"]}
            },
            "required": ["party"]
        },
        "InEffectResponse": {
            "type": "object",
            "properties": {
                "operatorId": {"type": "integer"},
                "seasonId": {"type": "string"},
                "documentType": {"type": "string"},
                "inspectionId": {"type": "string"},
                "version": {"type": "integer"},
                "inEffect": {"type": "boolean"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
