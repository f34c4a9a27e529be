package v1

import (
    "net/http"

    "github.com/tinoosan/fundledger/internal/service/contact"
)

// POST /v1/orgs/{orgID}/contacts
func (s *Server) postContact(w http.ResponseWriter, r *http.Request) {
    var req postContactRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    c, err := s.contacts.Create(r.Context(), contact.CreateInput{
        OrganizationID: orgFrom(r),
        Name:           req.Name,
        Email:          req.Email,
        Phone:          req.Phone,
        Actor:          actorFrom(r),
    })
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("contact", "create")
    setETag(w, c.VersionID)
    toJSON(w, http.StatusCreated, toContactResponse(c))
}

// GET /v1/orgs/{orgID}/contacts
func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
    list, err := s.contacts.List(r.Context(), orgFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    out := make([]contactResponse, 0, len(list))
    for _, c := range list { out = append(out, toContactResponse(c)) }
    toJSON(w, http.StatusOK, listResponse[contactResponse]{Items: out, Total: len(out)})
}

// GET /v1/orgs/{orgID}/contacts/{id}
func (s *Server) getContact(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid contact id"); return }
    c, err := s.contacts.Get(r.Context(), orgFrom(r), id)
    if err != nil { s.writeServiceError(w, r, err); return }
    setETag(w, c.VersionID)
    toJSON(w, http.StatusOK, toContactResponse(c))
}

// PATCH /v1/orgs/{orgID}/contacts/{id}
func (s *Server) updateContact(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid contact id"); return }
    var req updateContactRequest
    if !s.decodeBody(w, r, &req, maxBodyBytes) { return }
    c, err := s.contacts.Update(r.Context(), orgFrom(r), id, contact.Updates{Name: req.Name, Email: req.Email, Phone: req.Phone}, actorFrom(r))
    if err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("contact", "update")
    setETag(w, c.VersionID)
    toJSON(w, http.StatusOK, toContactResponse(c))
}

// DELETE /v1/orgs/{orgID}/contacts/{id}
func (s *Server) deleteContact(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid contact id"); return }
    if err := s.contacts.Delete(r.Context(), orgFrom(r), id, actorFrom(r)); err != nil { s.writeServiceError(w, r, err); return }
    s.metrics.mutated("contact", "delete")
    w.WriteHeader(http.StatusNoContent)
}

// GET /v1/orgs/{orgID}/contacts/{id}/history
func (s *Server) contactHistory(w http.ResponseWriter, r *http.Request) {
    id, err := pathID(r, "id")
    if err != nil { badRequest(w, "invalid contact id"); return }
    versions, err := s.contacts.History(r.Context(), orgFrom(r), id)
    if err != nil { s.writeServiceError(w, r, err); return }
    out := make([]contactResponse, 0, len(versions))
    for _, c := range versions { out = append(out, toContactResponse(c)) }
    toJSON(w, http.StatusOK, listResponse[contactResponse]{Items: out, Total: len(out)})
}
