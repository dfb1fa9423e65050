package model

type Employee struct {
	ID          int64  `json:"id"`
	EmployeeNr  string `json:"employee_nr"`
	FirstName   string `json:"first_name"`
	SecondName  string `json:"second_name"`
	Username    string `json:"username"`
	OfficeEmail string `json:"office_email"`
	Mobile      string `json:"mobile"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
