package req

type CreateTurnoRequest struct {
	Cancha string `json:"cancha" binding:"required"`
	Hora   string `json:"hora" binding:"required"`
}

type ListTurnosRequest struct {
	Cancha string `form:"cancha"`
}
